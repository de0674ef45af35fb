package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admission-gateway/middleware/gate"
)

func TestEchoBehindGate(t *testing.T) {
	h := gate.Middleware(gate.Options{})(newRouter(zap.NewNop()))

	r := httptest.NewRequest(http.MethodPost, "http://example/api/v1/image-edit/pro?seed=3", nil)
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"method": "POST",
		"path": "/api/flux-kontext",
		"action": "edit-image-pro",
		"query": "action=edit-image-pro&seed=3",
		"clientIp": "1.2.3.4"
	}`, w.Body.String())
}
