package homework

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractApproved(t *testing.T) {
	raw := json.RawMessage(`{"homework_name": "proj1", "status": "approved", "date_updated": "2021-01-01T10Z"}`)
	text, err := Extract(DefaultCatalog(), raw)
	require.NoError(t, err)

	verdict, _ := DefaultCatalog().Render(StatusApproved)
	assert.Contains(t, text, "proj1")
	assert.Contains(t, text, verdict)
	assert.Equal(t, `2021-01-01 10 changed status of review for "proj1". `+verdict, text)
	assert.NotContains(t, text, "T10Z")
}

func TestExtractRFC3339Date(t *testing.T) {
	raw := json.RawMessage(`{"homework_name": "hw05_final", "status": "reviewing", "date_updated": "2024-03-01T09:15:00+03:00"}`)
	text, err := Extract(DefaultCatalog(), raw)
	require.NoError(t, err)
	assert.Equal(t, `2024-03-01 06:15:00 changed status of review for "hw05_final". The work has been taken for review.`, text)
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  error
		field string
	}{
		{name: "missing name", raw: `{"status": "approved", "date_updated": "2021-01-01T10Z"}`, want: ErrMissingField, field: "homework_name"},
		{name: "missing status", raw: `{"homework_name": "proj1", "date_updated": "2021-01-01T10Z"}`, want: ErrMissingField, field: "status"},
		{name: "missing date", raw: `{"homework_name": "proj1", "status": "rejected"}`, want: ErrMissingField, field: "date_updated"},
		{name: "unknown status", raw: `{"homework_name": "proj1", "status": "pending", "date_updated": "2021-01-01T10Z"}`, want: ErrUnknownStatus},
		{name: "unknown status wins over missing name", raw: `{"status": "pending"}`, want: ErrUnknownStatus},
		{name: "name not a string", raw: `{"homework_name": 7, "status": "approved", "date_updated": "x"}`, want: ErrMalformedResponse},
		{name: "record is a list", raw: `["approved"]`, want: ErrMalformedResponse},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(DefaultCatalog(), json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			if tt.field != "" {
				var fe *FieldError
				require.True(t, errors.As(err, &fe))
				assert.Equal(t, tt.field, fe.Field)
				assert.Contains(t, err.Error(), tt.field)
			}
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "", NormalizeDate("  "))
	assert.Equal(t, "2021-01-01 10", NormalizeDate("2021-01-01T10Z"))
	assert.Equal(t, "2020-02-13 14:40:57", NormalizeDate("2020-02-13T14:40:57Z"))
	assert.Equal(t, "yesterday", NormalizeDate("yesterday"))
}
