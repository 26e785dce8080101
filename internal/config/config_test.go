package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"STORE_BACKEND":                "",
		"DATABASE_URL":                 "postgres://localhost/pricing",
		"REDIS_URL":                    "redis://localhost:6379/0",
		"JWT_SECRET":                   "secret",
		"RATE_LIMIT_STRATEGY":          "",
		"PRICING_FETCH_TIMEOUT":        "",
		"STORE_EXEMPT_COLLECTIONS":     "",
		"STORE_EXPLICIT_TENANT_POLICY": "",
		"SECURITY_HEADERS_ENABLE":      "",
		"OTEL_EXPORTER":                "",
		"OTEL_SAMPLING_RATIO":          "",
		"AUDIT_ENABLED":                "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, StoreBackendPostgres, cfg.StoreBackend)
	require.Equal(t, "sliding", cfg.RateLimitStrategy)
	require.Equal(t, 2*time.Second, cfg.PricingFetchTimeout)
	require.Equal(t, "allow", cfg.StoreExplicitTenantPolicy)
	require.True(t, cfg.SecurityHeadersEnable)
	require.Nil(t, cfg.StoreExemptCollections)
	require.Equal(t, "none", cfg.OTELExporter)
	require.Equal(t, 1.0, cfg.OTELSamplingRatio)
	require.True(t, cfg.AuditEnabled)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["STORE_BACKEND"] = "Memory"
	env["DATABASE_URL"] = ""
	env["RATE_LIMIT_STRATEGY"] = "fixed"
	env["PRICING_FETCH_TIMEOUT"] = "750ms"
	env["STORE_EXEMPT_COLLECTIONS"] = "fonts, sessions ,"
	env["STORE_EXPLICIT_TENANT_POLICY"] = "REJECT"
	env["SECURITY_HEADERS_ENABLE"] = "off"
	env["OTEL_SAMPLING_RATIO"] = "0.25"
	env["AUDIT_ENABLED"] = "false"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	require.Equal(t, "fixed", cfg.RateLimitStrategy)
	require.Equal(t, 750*time.Millisecond, cfg.PricingFetchTimeout)
	require.Equal(t, []string{"fonts", "sessions"}, cfg.StoreExemptCollections)
	require.Equal(t, 0.25, cfg.OTELSamplingRatio)
	require.Equal(t, "reject", cfg.StoreExplicitTenantPolicy)
	require.False(t, cfg.SecurityHeadersEnable)
	require.False(t, cfg.AuditEnabled)
}

func TestLoadValidation(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "DATABASE_URL")

	env = baseEnv()
	env["STORE_BACKEND"] = "mongo"
	_, err = LoadForTests(env)
	require.ErrorContains(t, err, "STORE_BACKEND")

	env = baseEnv()
	env["RATE_LIMIT_STRATEGY"] = "token_bucket"
	_, err = LoadForTests(env)
	require.ErrorContains(t, err, "RATE_LIMIT_STRATEGY")
}

func TestHTTPAddr(t *testing.T) {
	require.Equal(t, ":9000", (&Config{Port: "9000"}).HTTPAddr())
	require.Equal(t, ":8081", (&Config{Port: ":8081"}).HTTPAddr())
	require.Equal(t, ":8080", (&Config{}).HTTPAddr())
}
