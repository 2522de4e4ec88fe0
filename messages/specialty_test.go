package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecialty(t *testing.T) {
	for _, valid := range []string{"medication_advice", "symptom_check", "interaction_check", "rejection_risk"} {
		sp, err := ParseSpecialty(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, sp.String())
		assert.True(t, sp.Valid())
	}

	_, err := ParseSpecialty("astrology")
	assert.Error(t, err)
	assert.False(t, Specialty("astrology").Valid())
}

func TestRequestTopics(t *testing.T) {
	assert.Equal(t, "medication-requests", MedicationAdvice.RequestTopic())
	assert.Equal(t, "symptom-requests", SymptomCheck.RequestTopic())
	assert.Equal(t, "interaction-requests", InteractionCheck.RequestTopic())
	assert.Equal(t, "rejection-requests", RejectionRisk.RequestTopic())

	assert.Equal(t, "medication-requests-sub", MedicationAdvice.RequestSubscription())
}
