package messages

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Broker attribute keys carried alongside every message body.
const (
	AttrRequestID = "request_id"
	AttrSpecialty = "specialty"
)

var subRequestJSON = []byte(`{"type":"sub_request"}`)

// SubRequest is one unit of work sent to exactly one specialist. The
// request_id is the sole correlation key; the correlation_group_id ties
// together all sub-requests spawned from one logical caller request and is
// never interpreted by the broker or the workers.
type SubRequest struct {
	RequestID          string          `json:"request_id"`
	CorrelationGroupID string          `json:"correlation_group_id,omitempty"`
	Specialty          Specialty       `json:"specialty"`
	Payload            gjson.Result    `json:"payload"`
	Context            gjson.Result    `json:"context,omitempty"`
	CreatedAt          strfmt.DateTime `json:"created_at,omitempty"`
}

// Attributes returns the broker message attributes for this sub-request.
func (r SubRequest) Attributes() map[string]string {
	return map[string]string{
		AttrRequestID: r.RequestID,
		AttrSpecialty: r.Specialty.String(),
	}
}

// MarshalJSON implements custom JSON marshaling for SubRequest
func (r SubRequest) MarshalJSON() ([]byte, error) {
	result := subRequestJSON

	var err error
	result, err = sjson.SetBytes(result, "request_id", r.RequestID)
	if err != nil {
		return nil, err
	}

	if r.CorrelationGroupID != "" {
		result, err = sjson.SetBytes(result, "correlation_group_id", r.CorrelationGroupID)
		if err != nil {
			return nil, err
		}
	}

	result, err = sjson.SetBytes(result, "specialty", r.Specialty.String())
	if err != nil {
		return nil, err
	}

	if r.Payload.Exists() {
		result, err = sjson.SetRawBytes(result, "payload", []byte(r.Payload.Raw))
		if err != nil {
			return nil, err
		}
	}

	if r.Context.Exists() {
		result, err = sjson.SetRawBytes(result, "context", []byte(r.Context.Raw))
		if err != nil {
			return nil, err
		}
	}

	if !r.CreatedAt.IsZero() {
		result, err = sjson.SetBytes(result, "created_at", r.CreatedAt.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for SubRequest
func (r *SubRequest) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "sub_request" {
		return fmt.Errorf("missing or invalid type, expected 'sub_request'")
	}

	requestID := gjson.GetBytes(data, "request_id")
	if !requestID.Exists() || requestID.String() == "" {
		return fmt.Errorf("missing required field 'request_id'")
	}
	r.RequestID = requestID.String()

	specialty := gjson.GetBytes(data, "specialty")
	if !specialty.Exists() {
		return fmt.Errorf("missing required field 'specialty'")
	}
	sp, err := ParseSpecialty(specialty.String())
	if err != nil {
		return fmt.Errorf("invalid specialty: %w", err)
	}
	r.Specialty = sp

	payload := gjson.GetBytes(data, "payload")
	if !payload.Exists() {
		return fmt.Errorf("missing required field 'payload'")
	}
	r.Payload = payload

	if groupID := gjson.GetBytes(data, "correlation_group_id"); groupID.Exists() {
		r.CorrelationGroupID = groupID.String()
	}

	if context := gjson.GetBytes(data, "context"); context.Exists() {
		r.Context = context
	}

	if createdAt := gjson.GetBytes(data, "created_at"); createdAt.Exists() {
		if err := r.CreatedAt.UnmarshalText([]byte(createdAt.String())); err != nil {
			return fmt.Errorf("invalid created_at: %w", err)
		}
	}

	return nil
}

// Value marshals an arbitrary Go value into the raw JSON representation used
// for payloads, contexts and specialist results.
func Value(v any) (gjson.Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal value: %w", err)
	}
	return gjson.ParseBytes(data), nil
}
