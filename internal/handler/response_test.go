package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/internal/apperr"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", apperr.New(apperr.KindValidation, "bad input"), http.StatusBadRequest},
		{"not found", apperr.New(apperr.KindNotFound, "missing"), http.StatusNotFound},
		{"permission", apperr.New(apperr.KindPermissionDenied, "denied"), http.StatusForbidden},
		{"conflict", apperr.New(apperr.KindConflict, "race lost"), http.StatusConflict},
		{"storage", apperr.Wrap(apperr.KindStorage, errors.New("s3 down"), "store failed"), http.StatusInternalServerError},
		{"transient storage", apperr.WrapTransient(apperr.KindStorage, errors.New("throttled"), "slow"), http.StatusServiceUnavailable},
		{"persistence", apperr.Wrap(apperr.KindPersistence, errors.New("tx failed"), "db"), http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteError_HidesStorageDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperr.Wrap(apperr.KindStorage, errors.New("secret endpoint details"), "store failed"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body["error"], "secret endpoint details")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1:1234", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5")
	assert.Equal(t, "203.0.113.5", clientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(r))
}
