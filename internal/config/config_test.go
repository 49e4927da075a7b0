package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ONDC_ENV", "")
	t.Setenv("ONDC_ENFORCE_SIGNATURES", "")

	cfg := Load()

	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.True(t, cfg.EnforceSignatures, "signature enforcement must default on")
	assert.Equal(t, "https://staging.registry.ondc.org/lookup", cfg.RegistryURL)
	assert.Equal(t, 10*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 30*time.Second, cfg.CallbackTimeout)
	assert.True(t, cfg.Store.DeliveryEnabled)
	assert.True(t, cfg.Store.PrepaidEnabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ONDC_ENV", "PROD")
	t.Setenv("ONDC_ENFORCE_SIGNATURES", "false")
	t.Setenv("STORE_TAX_RATE", "5")
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("ONDC_KEY_CACHE_TTL", "15m")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.EnforceSignatures)
	assert.Equal(t, "https://prod.registry.ondc.org/ondc/lookup", cfg.RegistryURL)
	assert.Equal(t, 5.0, cfg.Store.TaxRate)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 15*time.Minute, cfg.KeyCacheTTL)
}

func TestRegistryLookupURLUnknownEnv(t *testing.T) {
	assert.Equal(t, RegistryLookupURL(EnvStaging), RegistryLookupURL("qa"))
	assert.Equal(t, "https://preprod.registry.ondc.org/ondc/lookup", RegistryLookupURL(EnvPreprod))
}

func TestIssueBackendsList(t *testing.T) {
	t.Setenv("IGM_BACKENDS", "")
	assert.Equal(t, []string{"log"}, Load().IssueBackends, "default chain is store backed")

	t.Setenv("IGM_BACKENDS", " ERP , ,log")
	assert.Equal(t, []string{"erp", "log"}, Load().IssueBackends)
}
