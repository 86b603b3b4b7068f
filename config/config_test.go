package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "PORTAL_URL", "RECEITA_OPTION",
		"ELEMENT_TIMEOUT_MS", "PAGE_LOAD_TIMEOUT_MS", "IE_FOUND_TIMEOUT_MS", "BATCH_INTERVAL_MS",
		"CAPTCHA_PROVIDER", "ANTI_CAPTCHA_API_KEY",
		"ERROR_SCREENSHOT_DIR", "UPLOAD_DIR", "SELECTORS_FILE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ANTI_CAPTCHA_API_KEY", "key-123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "https://servicos.sefaz.ce.gov.br/internet/dae/aplic/default.asp", cfg.PortalURL)
	assert.Equal(t, "1015 - ICMS Regime Mensal de Apuração1", cfg.ReceitaOptionValue)
	assert.Equal(t, 15*time.Second, cfg.ElementTimeout)
	assert.Equal(t, 30*time.Second, cfg.PageLoadTimeout)
	assert.Equal(t, 12*time.Second, cfg.IEFoundTimeout)
	assert.Equal(t, 10*time.Second, cfg.BatchInterval)
	assert.Equal(t, ProviderAntiCaptcha, cfg.CaptchaProvider)
	assert.Equal(t, "key-123", cfg.AntiCaptchaKey)

	assert.Equal(t, `input[name="txtValor"]`, cfg.Selectors.IEField)
	assert.Equal(t, `#cmbReceita`, cfg.Selectors.ReceitaSelect)
	assert.Equal(t, `#strCAPTCHA`, cfg.Selectors.CaptchaInput)
}

func TestLoadRequiresAntiCaptchaKey(t *testing.T) {
	clearConfigEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTI_CAPTCHA_API_KEY")
}

func TestLoadTesseractNeedsNoKey(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CAPTCHA_PROVIDER", "tesseract")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderTesseract, cfg.CaptchaProvider)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CAPTCHA_PROVIDER", "2captcha")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown CAPTCHA_PROVIDER")
}

func TestLoadEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ANTI_CAPTCHA_API_KEY", "k")
	t.Setenv("PORT", "9000")
	t.Setenv("ELEMENT_TIMEOUT_MS", "500")
	t.Setenv("BATCH_INTERVAL_MS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.ElementTimeout)
	// invalid override falls back to the default
	assert.Equal(t, 10*time.Second, cfg.BatchInterval)
}

func TestLoadSelectorsFileOverlay(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ANTI_CAPTCHA_API_KEY", "k")

	path := filepath.Join(t.TempDir(), "selectors.toml")
	content := `
ie_field = 'input[name="txtNovoValor"]'
captcha_input = '#novoCaptcha'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("SELECTORS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, `input[name="txtNovoValor"]`, cfg.Selectors.IEField)
	assert.Equal(t, `#novoCaptcha`, cfg.Selectors.CaptchaInput)
	// untouched selectors keep their defaults
	assert.Equal(t, `#cmbReceita`, cfg.Selectors.ReceitaSelect)
}

func TestLoadSelectorsFileMissing(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ANTI_CAPTCHA_API_KEY", "k")
	t.Setenv("SELECTORS_FILE", filepath.Join(t.TempDir(), "nope.toml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load selectors file")
}
