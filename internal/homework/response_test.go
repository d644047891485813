package homework

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
		field   string
		records int
	}{
		{name: "empty list", payload: `{"homeworks": []}`, records: 0},
		{name: "one record", payload: `{"homeworks": [{"status": "approved"}], "current_date": 1700000000}`, records: 1},
		{name: "list is a string", payload: `{"homeworks": "x"}`, want: ErrMalformedResponse},
		{name: "list is an object", payload: `{"homeworks": {"status": "approved"}}`, want: ErrMalformedResponse},
		{name: "list is null", payload: `{"homeworks": null}`, want: ErrMalformedResponse},
		{name: "missing list", payload: `{}`, want: ErrMissingField, field: "homeworks"},
		{name: "payload is a list", payload: `[]`, want: ErrMalformedResponse},
		{name: "payload is a scalar", payload: `42`, want: ErrMalformedResponse},
		{name: "not json", payload: `<html>`, want: ErrMalformedResponse},
		{name: "cursor not integer", payload: `{"homeworks": [], "current_date": "soon"}`, want: ErrMalformedResponse},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ValidateResponse([]byte(tt.payload))
			if tt.want == nil {
				require.NoError(t, err)
				assert.Len(t, resp.Homeworks, tt.records)
				assert.NotNil(t, resp.Homeworks)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, tt.want, errorFor(KindOf(err)))
			if tt.field != "" {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, tt.field, fe.Field)
			}
		})
	}
}

func TestResponseNextWatermark(t *testing.T) {
	resp, err := ValidateResponse([]byte(`{"homeworks": [], "current_date": 1700000123}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000123), resp.NextWatermark(5))

	resp, err = ValidateResponse([]byte(`{"homeworks": []}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.NextWatermark(5))
}

func errorFor(k Kind) error {
	switch k {
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindMissingField:
		return ErrMissingField
	case KindUnknownStatus:
		return ErrUnknownStatus
	case KindFetchFailed:
		return ErrFetchFailed
	case KindDeliveryFailed:
		return ErrDeliveryFailed
	}
	return nil
}
