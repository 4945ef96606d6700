package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-bundles/internal/auth"
	"github.com/noah-isme/toko-bundles/internal/catalog"
	"github.com/noah-isme/toko-bundles/internal/config"
	"github.com/noah-isme/toko-bundles/internal/health"
	"github.com/noah-isme/toko-bundles/internal/ratelimit"
	"github.com/noah-isme/toko-bundles/internal/transform"
)

const testCatalog = `{"bundles":[{"parentVariantId":"KIT","components":[
  {"variantId":"A","quantity":1},{"variantId":"B","quantity":1}]}]}`

func newTestRouter(t *testing.T, verifier *auth.Verifier, limit int) http.Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundles.json")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))

	svc := catalog.NewService(catalog.ServiceConfig{Source: catalog.FileSource{Path: path}, Logger: zerolog.Nop()})
	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	return newRouter(routerDeps{
		Logger:    zerolog.Nop(),
		Config:    &config.Config{AppEnv: "test", BodyLimitBytes: 4096},
		Transform: transform.NewHandler(transform.NewService(transform.ServiceConfig{Catalogs: svc, Logger: zerolog.Nop()})),
		Catalog:   catalog.NewHandler(catalog.HandlerConfig{Service: svc}),
		Health:    health.Handler{},
		Admin:     auth.Middleware{Verifier: verifier},
		Limiter:   ratelimit.NewMemory(time.Minute, limit),
	})
}

func TestRouterRunsTransformAgainstStaticCatalog(t *testing.T) {
	r := newTestRouter(t, nil, 10)
	body := `{"cart":{"lines":[
	  {"id":"L1","quantity":1,"merchandise":{"id":"A"}},
	  {"id":"L2","quantity":1,"merchandise":{"id":"B"}}]}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/cart-transform/run", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	var resp transform.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Operations, 1)
	require.Equal(t, "KIT", resp.Operations[0].Merge.ParentVariantID)
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	r := newTestRouter(t, nil, 10)
	rec := httptest.NewRecorder()
	big := `{"cart":{"lines":[]},"pad":"` + strings.Repeat("x", 8192) + `"}`
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/cart-transform/run", strings.NewReader(big)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouterRateLimitsTransform(t *testing.T) {
	r := newTestRouter(t, nil, 1)
	body := `{"cart":{"lines":[{"id":"L1","quantity":1,"merchandise":{"id":"A"}}]}}`
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/cart-transform/run", strings.NewReader(body))
		req.Header.Set("X-Shop-Domain", "demo.myshopify.com")
		r.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouterAdminDisabledWithoutVerifier(t *testing.T) {
	r := newTestRouter(t, nil, 10)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/catalog", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "ADMIN_DISABLED")
}

func TestRouterAdminCatalog(t *testing.T) {
	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: "test-secret", Role: "admin"})
	require.NoError(t, err)
	r := newTestRouter(t, verifier, 10)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/catalog", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := verifier.Issue("ops@example.com", []string{"admin"}, time.Minute)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/catalog", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"KIT"`)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/admin/catalog/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"queued":false`)
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(t, nil, 10)
	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAllowedOrigins(t *testing.T) {
	require.Equal(t, []string{"*"}, allowedOrigins(&config.Config{}))
	require.Equal(t, []string{"https://a.example"}, allowedOrigins(&config.Config{CORSAllowedOrigins: []string{"https://a.example"}}))
}
