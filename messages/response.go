package messages

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Status reports whether a specialist computation succeeded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

var specialistResponseJSON = []byte(`{"type":"specialist_response"}`)

// SpecialistResponse is the result of processing one SubRequest. Exactly one
// response is published per consumed sub-request, including on failure, so
// the aggregator can report a firm error instead of waiting out its deadline.
type SpecialistResponse struct {
	RequestID      string          `json:"request_id"`
	Specialty      Specialty       `json:"specialty"`
	Status         Status          `json:"status"`
	Result         gjson.Result    `json:"result,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	ProcessingTime float64         `json:"processing_time"`
	ProducedAt     strfmt.DateTime `json:"produced_at,omitempty"`
}

// Attributes returns the broker message attributes for this response.
func (r SpecialistResponse) Attributes() map[string]string {
	return map[string]string{
		AttrRequestID: r.RequestID,
		AttrSpecialty: r.Specialty.String(),
	}
}

// MarshalJSON implements custom JSON marshaling for SpecialistResponse
func (r SpecialistResponse) MarshalJSON() ([]byte, error) {
	result := specialistResponseJSON

	var err error
	result, err = sjson.SetBytes(result, "request_id", r.RequestID)
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "specialty", r.Specialty.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "status", string(r.Status))
	if err != nil {
		return nil, err
	}

	if r.Result.Exists() {
		result, err = sjson.SetRawBytes(result, "result", []byte(r.Result.Raw))
		if err != nil {
			return nil, err
		}
	}

	if r.ErrorMessage != "" {
		result, err = sjson.SetBytes(result, "error_message", r.ErrorMessage)
		if err != nil {
			return nil, err
		}
	}

	result, err = sjson.SetBytes(result, "processing_time", r.ProcessingTime)
	if err != nil {
		return nil, err
	}

	if !r.ProducedAt.IsZero() {
		result, err = sjson.SetBytes(result, "produced_at", r.ProducedAt.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for SpecialistResponse
func (r *SpecialistResponse) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "specialist_response" {
		return fmt.Errorf("missing or invalid type, expected 'specialist_response'")
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

	status := gjson.GetBytes(data, "status")
	if !status.Exists() {
		return fmt.Errorf("missing required field 'status'")
	}
	switch Status(status.String()) {
	case StatusSuccess, StatusError:
		r.Status = Status(status.String())
	default:
		return fmt.Errorf("invalid status %q", status.String())
	}

	if result := gjson.GetBytes(data, "result"); result.Exists() {
		r.Result = result
	}

	if errMsg := gjson.GetBytes(data, "error_message"); errMsg.Exists() {
		r.ErrorMessage = errMsg.String()
	}

	if r.Status == StatusSuccess && !r.Result.Exists() {
		return fmt.Errorf("missing required field 'result' for success response")
	}
	if r.Status == StatusError && r.ErrorMessage == "" {
		return fmt.Errorf("missing required field 'error_message' for error response")
	}

	if pt := gjson.GetBytes(data, "processing_time"); pt.Exists() {
		r.ProcessingTime = pt.Float()
	}

	if producedAt := gjson.GetBytes(data, "produced_at"); producedAt.Exists() {
		if err := r.ProducedAt.UnmarshalText([]byte(producedAt.String())); err != nil {
			return fmt.Errorf("invalid produced_at: %w", err)
		}
	}

	return nil
}
