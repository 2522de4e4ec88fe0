package consilium

import (
	"context"
	"fmt"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/consiliumlabs/consilium/messages"
)

func echoSpecialist(t *testing.T, result string) Specialist {
	t.Helper()
	return SpecialistFunc(func(ctx context.Context, req messages.SubRequest) (gjson.Result, error) {
		return gjson.Parse(result), nil
	})
}

func subRequestBody(t *testing.T, specialty messages.Specialty, requestID string) []byte {
	t.Helper()
	req := messages.SubRequest{
		RequestID: requestID,
		Specialty: specialty,
		Payload:   gjson.Parse(`{"medication":"tacrolimus"}`),
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return body
}

func TestNewWorker_Validation(t *testing.T) {
	specialist := echoSpecialist(t, `{}`)

	_, err := NewWorker(nil, messages.MedicationAdvice, specialist)
	require.Error(t, err)

	_, err = NewWorker(newCaptureBroker(), messages.Specialty("phrenology"), specialist)
	require.Error(t, err)

	_, err = NewWorker(newCaptureBroker(), messages.MedicationAdvice, nil)
	require.Error(t, err)
}

func TestWorker_SuccessPublishesResponseThenAcks(t *testing.T) {
	b := newCaptureBroker()
	w, err := NewWorker(b, messages.MedicationAdvice, echoSpecialist(t, `{"risk_level":"low","recommendation":"continue current dose"}`))
	require.NoError(t, err)

	d := &manualDelivery{body: subRequestBody(t, messages.MedicationAdvice, "req-1")}
	w.handle(context.Background(), d)

	records := b.published(messages.ResponseTopic)
	require.Len(t, records, 1)

	var resp messages.SpecialistResponse
	require.NoError(t, resp.UnmarshalJSON(records[0].body))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, messages.MedicationAdvice, resp.Specialty)
	assert.Equal(t, messages.StatusSuccess, resp.Status)
	assert.Equal(t, "low", resp.Result.Get("risk_level").String())
	assert.GreaterOrEqual(t, resp.ProcessingTime, 0.0)
	assert.Equal(t, "req-1", records[0].attrs[messages.AttrRequestID])

	acks, nacks := d.settled()
	assert.Equal(t, 1, acks)
	assert.Equal(t, 0, nacks)
}

func TestWorker_ComputationErrorPublishesErrorResponseAndNacks(t *testing.T) {
	b := newCaptureBroker()
	failing := SpecialistFunc(func(ctx context.Context, req messages.SubRequest) (gjson.Result, error) {
		return gjson.Result{}, fmt.Errorf("formulary lookup failed")
	})
	w, err := NewWorker(b, messages.MedicationAdvice, failing)
	require.NoError(t, err)

	d := &manualDelivery{body: subRequestBody(t, messages.MedicationAdvice, "req-2")}
	w.handle(context.Background(), d)

	records := b.published(messages.ResponseTopic)
	require.Len(t, records, 1)

	var resp messages.SpecialistResponse
	require.NoError(t, resp.UnmarshalJSON(records[0].body))
	assert.Equal(t, messages.StatusError, resp.Status)
	assert.Equal(t, "formulary lookup failed", resp.ErrorMessage)

	// The firm failure is on the wire; the nack hands the input back for a
	// retry under the broker's delivery limit.
	acks, nacks := d.settled()
	assert.Equal(t, 0, acks)
	assert.Equal(t, 1, nacks)
}

func TestWorker_ResponsePublishFailureNacksWithoutAck(t *testing.T) {
	b := newCaptureBroker().failOn(messages.ResponseTopic, fmt.Errorf("stream offline"))
	w, err := NewWorker(b, messages.SymptomCheck, echoSpecialist(t, `{"urgency":"routine","actions":[]}`))
	require.NoError(t, err)

	d := &manualDelivery{body: subRequestBody(t, messages.SymptomCheck, "req-3")}
	w.handle(context.Background(), d)

	acks, nacks := d.settled()
	assert.Equal(t, 0, acks, "must not ack a sub-request whose response never went out")
	assert.Equal(t, 1, nacks)
}

func TestWorker_MalformedBodyWithAttributeKey(t *testing.T) {
	b := newCaptureBroker()
	w, err := NewWorker(b, messages.InteractionCheck, echoSpecialist(t, `{}`))
	require.NoError(t, err)

	d := &manualDelivery{
		body:  []byte(`{"type":"sub_request"`),
		attrs: map[string]string{messages.AttrRequestID: "req-4"},
	}
	w.handle(context.Background(), d)

	records := b.published(messages.ResponseTopic)
	require.Len(t, records, 1)

	var resp messages.SpecialistResponse
	require.NoError(t, resp.UnmarshalJSON(records[0].body))
	assert.Equal(t, "req-4", resp.RequestID)
	assert.Equal(t, messages.StatusError, resp.Status)
	assert.Contains(t, resp.ErrorMessage, "malformed sub-request")

	_, nacks := d.settled()
	assert.Equal(t, 1, nacks)
}

func TestWorker_MalformedBodyRecoversRequestIDFromBody(t *testing.T) {
	b := newCaptureBroker()
	w, err := NewWorker(b, messages.RejectionRisk, echoSpecialist(t, `{}`))
	require.NoError(t, err)

	// Valid JSON with a request_id but missing the type discriminator, so
	// SubRequest parsing rejects it while the raw key is still readable.
	d := &manualDelivery{body: []byte(`{"request_id":"req-5","specialty":"rejection_risk"}`)}
	w.handle(context.Background(), d)

	records := b.published(messages.ResponseTopic)
	require.Len(t, records, 1)

	var resp messages.SpecialistResponse
	require.NoError(t, resp.UnmarshalJSON(records[0].body))
	assert.Equal(t, "req-5", resp.RequestID)
	assert.Equal(t, messages.StatusError, resp.Status)
}

func TestWorker_MalformedBodyWithoutCorrelationKeyOnlyNacks(t *testing.T) {
	b := newCaptureBroker()
	w, err := NewWorker(b, messages.MedicationAdvice, echoSpecialist(t, `{}`))
	require.NoError(t, err)

	d := &manualDelivery{body: []byte(`not json at all`)}
	w.handle(context.Background(), d)

	assert.Empty(t, b.published(messages.ResponseTopic))
	acks, nacks := d.settled()
	assert.Equal(t, 0, acks)
	assert.Equal(t, 1, nacks)
}
