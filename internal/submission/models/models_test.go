package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "hudson/pkg/domain-errors"
)

func validContact() *ContactRequest {
	return &ContactRequest{Name: "Ann", Email: "ann@example.com", Message: "Hello"}
}

func TestContactRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ContactRequest)
		wantErr string
	}{
		{"valid", func(*ContactRequest) {}, ""},
		{"missing name", func(r *ContactRequest) { r.Name = "" }, "name must not be blank"},
		{"missing email", func(r *ContactRequest) { r.Email = "" }, "email is required"},
		{"blank message", func(r *ContactRequest) { r.Message = "   " }, "message must not be blank"},
		{"bad email", func(r *ContactRequest) { r.Email = "ann@" }, "email must be a valid email"},
		{"display name email", func(r *ContactRequest) { r.Email = "Ann <ann@example.com>" }, "email must be a valid email"},
		{"long message", func(r *ContactRequest) { r.Message = strings.Repeat("x", 5001) }, "message exceeds max length of 5000"},
		{"long name", func(r *ContactRequest) { r.Name = strings.Repeat("x", 101) }, "name exceeds max length of 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validContact()
			tt.mutate(req)
			err := req.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestContactRequestNormalizeAndForm(t *testing.T) {
	var req ContactRequest
	req.FromForm(map[string][]string{
		"name":    {"  Ann  "},
		"email":   {" Ann@Example.COM "},
		"message": {"\nHi there\n", "ignored"},
		"company": {"Acme"},
	})
	req.Normalize()

	assert.Equal(t, "Ann", req.Name)
	assert.Equal(t, "ann@example.com", req.Email)
	assert.Equal(t, "Hi there", req.Message)
	assert.Equal(t, "Acme", req.Company)
	assert.Empty(t, req.Phone)
	assert.NoError(t, req.Validate())
}

func TestNewsletterRequest(t *testing.T) {
	req := &NewsletterRequest{Email: " News@Example.com ", Source: " footer "}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "news@example.com", req.Email)
	assert.Equal(t, "footer", req.Source)

	assert.ErrorContains(t, (&NewsletterRequest{}).Validate(), "email is required")
	assert.ErrorContains(t, (&NewsletterRequest{Email: "nope"}).Validate(), "email must be a valid email")

	var form NewsletterRequest
	form.FromForm(map[string][]string{"email": {"a@b.com"}})
	assert.Equal(t, "a@b.com", form.Email)
}
