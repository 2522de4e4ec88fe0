package messages

import (
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubRequest_RoundTrip(t *testing.T) {
	req := SubRequest{
		RequestID:          "req-1",
		CorrelationGroupID: "group-1",
		Specialty:          MedicationAdvice,
		Payload:            gjson.Parse(`{"medication_name":"tacrolimus","scheduled_time":"2024-01-01T08:00:00Z"}`),
		Context:            gjson.Parse(`{"transplant_type":"kidney"}`),
		CreatedAt:          strfmt.DateTime(time.Now().UTC().Truncate(time.Millisecond)),
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Equal(t, "sub_request", gjson.GetBytes(data, "type").String())

	var got SubRequest
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, req.RequestID, got.RequestID)
	assert.Equal(t, req.CorrelationGroupID, got.CorrelationGroupID)
	assert.Equal(t, req.Specialty, got.Specialty)
	assert.Equal(t, "tacrolimus", got.Payload.Get("medication_name").String())
	assert.Equal(t, "kidney", got.Context.Get("transplant_type").String())
	assert.Equal(t, req.CreatedAt.String(), got.CreatedAt.String())
}

func TestSubRequest_UnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{not json`},
		{"wrong type", `{"type":"specialist_response","request_id":"r","specialty":"symptom_check","payload":{}}`},
		{"missing request_id", `{"type":"sub_request","specialty":"symptom_check","payload":{}}`},
		{"unknown specialty", `{"type":"sub_request","request_id":"r","specialty":"astrology","payload":{}}`},
		{"missing payload", `{"type":"sub_request","request_id":"r","specialty":"symptom_check"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SubRequest
			assert.Error(t, json.Unmarshal([]byte(tt.data), &req))
		})
	}
}

func TestSubRequest_Attributes(t *testing.T) {
	req := SubRequest{RequestID: "req-9", Specialty: SymptomCheck}
	attrs := req.Attributes()
	assert.Equal(t, "req-9", attrs[AttrRequestID])
	assert.Equal(t, "symptom_check", attrs[AttrSpecialty])
}

func TestValue(t *testing.T) {
	res, err := Value(map[string]any{"urgency": "routine", "score": 3})
	require.NoError(t, err)
	assert.Equal(t, "routine", res.Get("urgency").String())
	assert.EqualValues(t, 3, res.Get("score").Int())

	_, err = Value(func() {})
	assert.Error(t, err)
}
