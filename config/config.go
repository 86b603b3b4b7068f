package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Captcha provider names accepted in CAPTCHA_PROVIDER.
const (
	ProviderAntiCaptcha = "anticaptcha"
	ProviderTesseract   = "tesseract"
)

// Selectors holds every portal element selector the automation touches.
// Defaults match the SEFAZ-CE DAE pages; a TOML file referenced by
// SELECTORS_FILE can override them without a rebuild if the portal changes.
type Selectors struct {
	IEField       string `toml:"ie_field"`
	AdvanceButton string `toml:"advance_button"`
	ReceitaSelect string `toml:"receita_select"`
	FillDAEButton string `toml:"fill_dae_button"`
	RefMonth      string `toml:"ref_month"`
	RefYear       string `toml:"ref_year"`
	PayDay        string `toml:"pay_day"`
	PayMonth      string `toml:"pay_month"`
	PayYear       string `toml:"pay_year"`
	Principal     string `toml:"principal"`
	CaptchaImage  string `toml:"captcha_image"`
	CaptchaInput  string `toml:"captcha_input"`
}

// Config is the static configuration of the whole application. It is built
// once at startup and passed into the extractor and orchestrator
// constructors; nothing reads the environment after Load returns.
type Config struct {
	Port string

	PortalURL          string
	Selectors          Selectors
	ReceitaOptionValue string

	ElementTimeout  time.Duration // wait for a single element
	PageLoadTimeout time.Duration // wait for networkidle
	IEFoundTimeout  time.Duration // longer wait for the receita select after advancing
	BatchInterval   time.Duration // delay between consecutive IEs

	CaptchaProvider string
	AntiCaptchaKey  string

	ScreenshotDir string
	UploadDir     string
}

func defaultSelectors() Selectors {
	return Selectors{
		IEField:       `input[name="txtValor"]`,
		AdvanceButton: `input[name="ok"]`,
		ReceitaSelect: `#cmbReceita`,
		FillDAEButton: `input[name="ok"]`,
		RefMonth:      `#txtMesPeriodoReferencia`,
		RefYear:       `#txtAnoPeriodoReferencia`,
		PayDay:        `input[name="txtDiaPagamento"]`,
		PayMonth:      `input[name="txtMesPagamento"]`,
		PayYear:       `input[name="txtAnoPagamento"]`,
		Principal:     `input[name="txtValorPrincipal"]`,
		CaptchaImage:  `#imgCaptcha`,
		CaptchaInput:  `#strCAPTCHA`,
	}
}

// Load builds the configuration from environment variables and the optional
// selectors TOML file. A missing Anti-Captcha key is a startup error when
// the anticaptcha provider is selected.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		PortalURL:          getEnv("PORTAL_URL", "https://servicos.sefaz.ce.gov.br/internet/dae/aplic/default.asp"),
		Selectors:          defaultSelectors(),
		ReceitaOptionValue: getEnv("RECEITA_OPTION", "1015 - ICMS Regime Mensal de Apuração1"),
		ElementTimeout:     getEnvDurationMS("ELEMENT_TIMEOUT_MS", 15_000),
		PageLoadTimeout:    getEnvDurationMS("PAGE_LOAD_TIMEOUT_MS", 30_000),
		IEFoundTimeout:     getEnvDurationMS("IE_FOUND_TIMEOUT_MS", 12_000),
		BatchInterval:      getEnvDurationMS("BATCH_INTERVAL_MS", 10_000),
		CaptchaProvider:    getEnv("CAPTCHA_PROVIDER", ProviderAntiCaptcha),
		AntiCaptchaKey:     getEnv("ANTI_CAPTCHA_API_KEY", ""),
		ScreenshotDir:      getEnv("ERROR_SCREENSHOT_DIR", "error_screenshots"),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
	}

	if file := os.Getenv("SELECTORS_FILE"); file != "" {
		if err := loadSelectorsFile(file, &cfg.Selectors); err != nil {
			return nil, fmt.Errorf("failed to load selectors file %s: %w", file, err)
		}
	}

	switch cfg.CaptchaProvider {
	case ProviderAntiCaptcha:
		if cfg.AntiCaptchaKey == "" {
			return nil, fmt.Errorf("ANTI_CAPTCHA_API_KEY is required when CAPTCHA_PROVIDER=%s", ProviderAntiCaptcha)
		}
	case ProviderTesseract:
		// local OCR, no credential needed
	default:
		return nil, fmt.Errorf("unknown CAPTCHA_PROVIDER %q (expected %s or %s)", cfg.CaptchaProvider, ProviderAntiCaptcha, ProviderTesseract)
	}

	return cfg, nil
}

// loadSelectorsFile overlays non-empty selector values from a TOML file.
func loadSelectorsFile(path string, sel *Selectors) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var override Selectors
	if err := toml.Unmarshal(data, &override); err != nil {
		return err
	}
	applyOverride(&sel.IEField, override.IEField)
	applyOverride(&sel.AdvanceButton, override.AdvanceButton)
	applyOverride(&sel.ReceitaSelect, override.ReceitaSelect)
	applyOverride(&sel.FillDAEButton, override.FillDAEButton)
	applyOverride(&sel.RefMonth, override.RefMonth)
	applyOverride(&sel.RefYear, override.RefYear)
	applyOverride(&sel.PayDay, override.PayDay)
	applyOverride(&sel.PayMonth, override.PayMonth)
	applyOverride(&sel.PayYear, override.PayYear)
	applyOverride(&sel.Principal, override.Principal)
	applyOverride(&sel.CaptchaImage, override.CaptchaImage)
	applyOverride(&sel.CaptchaInput, override.CaptchaInput)
	return nil
}

func applyOverride(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationMS(key string, defaultMS int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return time.Duration(defaultMS) * time.Millisecond
}
