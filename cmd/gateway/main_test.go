package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admission-gateway/middleware/gate"
)

func TestProxy_GateHeadersWinOverUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Content-Security-Policy", "default-src *")
		w.Header().Set("X-Upstream", "1")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	h := gate.Middleware(gate.Options{})(newProxy(target, zap.NewNop()))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://gw/page", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"DENY"}, w.Header().Values("X-Frame-Options"))
	assert.Equal(t, []string{gate.ContentSecurityPolicy("")}, w.Header().Values("Content-Security-Policy"))
	assert.Equal(t, "1", w.Header().Get("X-Upstream"))
}
