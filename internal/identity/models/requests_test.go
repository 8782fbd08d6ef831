package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycgate/pkg/domain-errors"
)

func validRequest() RegisterRequest {
	return RegisterRequest{Email: "jane@example.com", Password: "secret1", Phone: "+15551234567"}
}

func TestRegisterRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *RegisterRequest)
		wantMsg string
	}{
		{name: "missing email", mutate: func(r *RegisterRequest) { r.Email = "" }, wantMsg: "Email, password, and phone number are required"},
		{name: "missing password", mutate: func(r *RegisterRequest) { r.Password = "" }, wantMsg: "Email, password, and phone number are required"},
		{name: "missing phone", mutate: func(r *RegisterRequest) { r.Phone = "" }, wantMsg: "Email, password, and phone number are required"},
		{name: "missing field wins over bad email", mutate: func(r *RegisterRequest) { r.Phone = ""; r.Email = "nope" }, wantMsg: "Email, password, and phone number are required"},
		{name: "bad email", mutate: func(r *RegisterRequest) { r.Email = "not-an-email" }, wantMsg: "Invalid email format"},
		{name: "bad email wins over bad phone", mutate: func(r *RegisterRequest) { r.Email = "x@"; r.Phone = "12" }, wantMsg: "Invalid email format"},
		{name: "phone too short", mutate: func(r *RegisterRequest) { r.Phone = "123456789" }, wantMsg: "Invalid phone number format"},
		{name: "phone too long", mutate: func(r *RegisterRequest) { r.Phone = "+1234567890123456" }, wantMsg: "Invalid phone number format"},
		{name: "phone with letters", mutate: func(r *RegisterRequest) { r.Phone = "+1555ABC4567" }, wantMsg: "Invalid phone number format"},
		{name: "bad phone wins over short password", mutate: func(r *RegisterRequest) { r.Phone = "abc"; r.Password = "123" }, wantMsg: "Invalid phone number format"},
		{name: "password of five", mutate: func(r *RegisterRequest) { r.Password = "12345" }, wantMsg: "Password must be at least 6 characters long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
			de, _ := dErrors.As(err)
			assert.Equal(t, tt.wantMsg, de.Message)
		})
	}

	t.Run("accepts boundary values", func(t *testing.T) {
		req := validRequest()
		req.Password = "123456"
		req.Phone = "1234567890"
		assert.NoError(t, req.Validate())

		req.Phone = "+123456789012345"
		assert.NoError(t, req.Validate())
	})

	t.Run("password length counts characters not bytes", func(t *testing.T) {
		req := validRequest()
		req.Password = strings.Repeat("é", 6)
		assert.NoError(t, req.Validate())
	})
}

func TestRegisterRequestNormalize(t *testing.T) {
	req := RegisterRequest{Email: "  jane@example.com ", Password: " secret1 ", Phone: "\t+15551234567\n"}
	req.Normalize()
	assert.Equal(t, "jane@example.com", req.Email)
	assert.Equal(t, " secret1 ", req.Password)
	assert.Equal(t, "+15551234567", req.Phone)

	t.Run("surrounding spaces count towards password length", func(t *testing.T) {
		req := validRequest()
		req.Password = " abcde"
		req.Normalize()
		assert.Equal(t, " abcde", req.Password)
		assert.NoError(t, req.Validate())
	})

	t.Run("whitespace only counts as missing", func(t *testing.T) {
		req := RegisterRequest{Email: "   ", Password: "secret1", Phone: "+15551234567"}
		req.Normalize()
		assert.Error(t, req.Validate())
	})
}

func TestEmailKey(t *testing.T) {
	assert.Equal(t, "jane@example.com", EmailKey(" Jane@Example.COM "))
}
