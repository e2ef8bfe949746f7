package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"airsupport/internal/config"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func serve(h http.Handler, method, path string, headers map[string]string) int {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestHTTPAuth(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "reader", Extra: "r-extra", Permissions: []string{permToolsRead}},
				{Key: "admin", Extra: "a-extra"},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}
	h := NewHTTPAuth(&cfg).Wrap(okHandler())

	reader := map[string]string{"x-api-key": "reader", "x-api-extra": "r-extra"}
	admin := map[string]string{"x-api-key": "admin", "x-api-extra": "a-extra"}

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    int
	}{
		{"success", http.MethodGet, toolsPath, reader, http.StatusOK},
		{"missing headers", http.MethodGet, toolsPath, nil, http.StatusUnauthorized},
		{"invalid key", http.MethodGet, toolsPath, map[string]string{"x-api-key": "nope", "x-api-extra": "r-extra"}, http.StatusUnauthorized},
		{"invalid extra", http.MethodGet, toolsPath, map[string]string{"x-api-key": "reader", "x-api-extra": "bad"}, http.StatusUnauthorized},
		{"reader cannot invoke", http.MethodPost, toolsPrefix + "book_hotel", reader, http.StatusForbidden},
		{"reader cannot export", http.MethodGet, exportPath, reader, http.StatusForbidden},
		{"reader reads approval", http.MethodGet, approvalsPrefix + "abc", reader, http.StatusOK},
		{"empty permissions allow all", http.MethodPost, approvalsPrefix + "abc/approve", admin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(h, tt.method, tt.path, tt.headers))
		})
	}
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled:   true,
		Auth:      config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1},
	}
	h := NewHTTPAuth(&cfg).Wrap(okHandler())
	headers := map[string]string{"x-api-key": "key1"}

	// First request - ok
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, toolsPath, headers))
	// Second request - blocked
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodGet, toolsPath, headers))
	// Other clients have their own bucket
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, toolsPath, map[string]string{"x-api-key": "key2"}))
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, toolsPath, permToolsRead},
		{http.MethodPost, toolsPrefix + "search_hotels", permToolsWrite},
		{http.MethodGet, approvalsPrefix + "id", permToolsRead},
		{http.MethodPost, approvalsPrefix + "id/deny", permToolsWrite},
		{http.MethodGet, exportPath, permExportRead},
		{http.MethodGet, "/healthz", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		assert.Equal(t, tt.want, requiredPermission(req), tt.path)
	}
}

func TestHealthBypassesAuth(t *testing.T) {
	cfg := config.APIConfig{
		Auth: config.APIAuthConfig{Enabled: true, APIKeys: []config.APIClientKey{{Key: "k", Extra: "e"}}},
	}
	server := NewHTTPServer(cfg, notReady{}, nil, nil, nil)

	assert.Equal(t, http.StatusOK, serve(server.Handler(), http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusUnauthorized, serve(server.Handler(), http.MethodGet, toolsPath, nil))
}
