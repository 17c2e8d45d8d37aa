package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/PoiCatalog/pkg/errors"
)

type sample struct {
	Name  string  `json:"name" validate:"required,notblank,max=10"`
	Email string  `json:"email,omitempty" validate:"omitempty,email"`
	Lat   float64 `json:"lat" validate:"latitude"`
	Score int     `json:"score" validate:"gte=1,lte=5"`
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(sample{Name: "Mill", Lat: 45.1, Score: 3}))
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(sample{Name: "   ", Email: "nope", Lat: 91, Score: 6})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := verr.Fields()
	assert.Equal(t, "must not be blank", fields["name"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be a latitude between -90 and 90", fields["lat"])
	assert.Equal(t, "must be less than or equal to 5", fields["score"])
	assert.Contains(t, verr.Error(), "field 'name'")
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"Mill","lat":1,"score":2}`, ""},
		{"malformed", `{"name":`, "decode request body"},
		{"unknown field", `{"name":"Mill","score":2,"rank":1}`, "unknown field"},
		{"trailing data", `{"name":"Mill","score":2} {}`, "trailing data"},
		{"invalid", `{"name":"","score":2}`, "field 'name'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst sample
			err := DecodeAndValidate(r, &dst)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	err := Validate(sample{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
