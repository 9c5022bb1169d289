package validators

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
	"github.com/stretchr/testify/require"
)

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func postJSON(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var dest loginBody
	err := DecodeJSONBody(postJSON(`{"email":"a@b.co","password":"longenough"}`), &dest)
	require.NoError(t, err)
	require.Equal(t, "a@b.co", dest.Email)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dest loginBody
	err := DecodeJSONBody(postJSON(`{"email":"a@b.co","password":"longenough","extra":1}`), &dest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestDecodeJSONBodyReportsPerFieldMessages(t *testing.T) {
	var dest loginBody
	err := DecodeJSONBody(postJSON(`{"email":"not-an-email","password":"short"}`), &dest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid email", details["email"])
	require.Equal(t, "must be at least 8", details["password"])
}

func TestDecodeJSONBodyRejectsMalformedJSON(t *testing.T) {
	var dest loginBody
	err := DecodeJSONBody(postJSON(`{`), &dest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3", nil)
	value, err := ParseQueryInt(req, "page", 1, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 3, value)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	value, err = ParseQueryInt(req, "page", 1, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 1, value)

	req = httptest.NewRequest(http.MethodGet, "/?page=abc", nil)
	_, err = ParseQueryInt(req, "page", 1, 1, 100)
	require.Error(t, err)

	req = httptest.NewRequest(http.MethodGet, "/?page=500", nil)
	_, err = ParseQueryInt(req, "page", 1, 1, 100)
	require.Error(t, err)
}
