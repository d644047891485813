package homework

import (
	"encoding/json"
)

// Response is a validated poll payload.
type Response struct {
	// Homeworks keeps each record raw; records are checked one by one in Extract.
	Homeworks []json.RawMessage `json:"homeworks"`
	// CurrentDate is the server cursor for the next query window, if sent.
	CurrentDate *int64 `json:"current_date,omitempty"`
}

// NextWatermark returns the server cursor, or fallback when the server sent none.
func (r Response) NextWatermark(fallback int64) int64 {
	if r.CurrentDate == nil {
		return fallback
	}
	return *r.CurrentDate
}

// ValidateResponse checks the payload shape and returns its records unchanged.
//
//   - payload is not a JSON object: ErrMalformedResponse
//   - "homeworks" is absent: ErrMissingField (*FieldError)
//   - "homeworks" is not a list: ErrMalformedResponse
func ValidateResponse(payload []byte) (Response, error) {
	if err := checkShape(responseSchema, payload); err != nil {
		return Response{}, err
	}
	var r Response
	if err := json.Unmarshal(payload, &r); err != nil {
		return Response{}, &ShapeError{Field: rootField, Reason: err.Error()}
	}
	if r.Homeworks == nil {
		r.Homeworks = []json.RawMessage{}
	}
	return r, nil
}
