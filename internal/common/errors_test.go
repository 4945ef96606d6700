package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteErrorRendersAppError(t *testing.T) {
	cause := errors.New("definition 2: no components")
	err := &AppError{Code: "CATALOG_REJECTED", Message: "catalog rejected", HTTPStatus: http.StatusUnprocessableEntity, Err: cause, Details: map[string]any{"reason": "x"}}

	rec := httptest.NewRecorder()
	WriteError(rec, err)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "CATALOG_REJECTED", body.Error.Code)
	require.Equal(t, map[string]any{"reason": "x"}, body.Error.Details)
	require.ErrorIs(t, err, cause)
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	require.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	require.Equal(t, "203.0.113.7", ClientIP(req))
}

func TestClientIPSkipsMalformedHops(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	require.Equal(t, "2001:db8::1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2:8080")
	require.Equal(t, "198.51.100.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "unknown, , 203.0.113.9")
	require.Equal(t, "203.0.113.9", ClientIP(req))

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.RemoteAddr = "pipe"
	require.Equal(t, "pipe", ClientIP(bad))
	require.Empty(t, ClientIP(nil))
}

func TestJSONKeepsBundleTitlesUnescaped(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]string{"title": "Ski & Snow <Kit>"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "{\"title\":\"Ski & Snow <Kit>\"}\n", rec.Body.String())
}
