package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"sefazdae/config"
	"sefazdae/models"
)

// Failure reason cap for the review ledger.
const maxReasonLength = 80

// DAEBatchService drives one browser session through the DAE flow for a
// batch of IEs: enter IE, advance, select the receita, open the form, fill
// period/payment/amount, solve the captcha. The form is never submitted;
// that is left to a human reviewing the ledger.
type DAEBatchService struct {
	cfg         *config.Config
	solver      CaptchaSolver
	screenshots *ScreenshotService
	headless    bool

	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	portal     PortalPage

	// session lifecycle hooks; production wires the playwright browser,
	// tests substitute no-op sessions around a fake portal
	startSession func() error
	closeSession func()
}

// NewDAEBatchService builds the orchestrator. The browser is only started
// when RunBatch is called.
func NewDAEBatchService(cfg *config.Config, solver CaptchaSolver, headless bool) *DAEBatchService {
	s := &DAEBatchService{
		cfg:         cfg,
		solver:      solver,
		screenshots: NewScreenshotService(cfg.ScreenshotDir),
		headless:    headless,
	}
	s.startSession = s.startBrowser
	s.closeSession = s.closeBrowser
	return s
}

// RunBatch processes every work item sequentially on a single page and
// returns the success/failure ledger. Only session-level failures (browser
// launch, navigation to the entry page) abort the batch; per-IE failures
// are recorded and the loop moves on. The browser is torn down exactly
// once, no matter how the run ends.
func (s *DAEBatchService) RunBatch(ctx context.Context, items []models.WorkItem) (*models.BatchResult, error) {
	if err := s.startSession(); err != nil {
		return nil, err
	}
	defer s.closeSession()

	if err := s.openEntryPage(); err != nil {
		return nil, fmt.Errorf("failed to reach the portal entry page: %w", err)
	}

	result := models.NewBatchResult()
	if err := s.processItems(ctx, items, result); err != nil {
		return nil, err
	}

	log.Printf("Batch finished: %d succeeded, %d failed", len(result.Succeeded), len(result.Failed))
	return result, nil
}

func (s *DAEBatchService) startBrowser() error {
	log.Printf("Starting browser (headless=%v)", s.headless)
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	s.pw = pw

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.headless),
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	s.browser = browser

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: 1280, Height: 720},
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create browser context: %w", err)
	}
	s.browserCtx = browserCtx

	page, err := browserCtx.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	page.SetDefaultTimeout(float64(s.cfg.ElementTimeout.Milliseconds()))

	s.portal = NewPortalPage(page, s.cfg)
	return nil
}

func (s *DAEBatchService) closeBrowser() {
	if s.browserCtx != nil {
		if err := s.browserCtx.Close(); err != nil {
			log.Printf("Failed to close browser context: %v", err)
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			log.Printf("Failed to close browser: %v", err)
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			log.Printf("Failed to stop playwright: %v", err)
		}
	}
	log.Printf("Browser closed")
}

func (s *DAEBatchService) openEntryPage() error {
	log.Printf("Opening portal entry page: %s", s.cfg.PortalURL)
	if err := s.portal.Goto(s.cfg.PortalURL); err != nil {
		return err
	}
	return s.portal.WaitLoad()
}

// processItems runs the per-IE step sequence against the already-open
// portal page, appending every non-skipped outcome to the ledger. A failed
// reload of the entry page between items means the portal itself is gone,
// so it aborts the whole batch instead of failing one IE.
func (s *DAEBatchService) processItems(ctx context.Context, items []models.WorkItem, result *models.BatchResult) error {
	total := len(items)
	for i, item := range items {
		ie := item.IE

		if item.RefMonth < 1 || item.RefMonth > 12 || item.RefYear == 0 {
			result.AddFailure(orEmpty(ie), "reference period (month/year) missing from spreadsheet data")
			continue
		}
		if ie == "" || item.IEDigits == "" {
			result.AddFailure(orEmpty(ie), "invalid or empty IE")
			continue
		}
		if item.Skippable() {
			log.Printf("IE %s skipped: TOTAL amount absent, zero or blank (not executed)", ie)
			continue
		}

		log.Printf("Processing IE %s (%d/%d)", ie, i+1, total)

		if i > 0 {
			log.Printf("Waiting %s before the next IE", s.cfg.BatchInterval)
			time.Sleep(s.cfg.BatchInterval)
			if err := s.openEntryPage(); err != nil {
				return fmt.Errorf("failed to reach the portal entry page between items: %w", err)
			}
		}

		found, err := s.enterIEAndAdvance(item.IEDigits)
		if err != nil {
			log.Printf("Error entering IE %s: %v", ie, err)
			s.screenshots.CaptureError(s.portal, ErrorShotName("advance_ie", item.IEDigits))
			result.AddFailure(ie, truncateReason(err.Error(), "failed to enter the IE and advance"))
			continue
		}
		if !found {
			log.Printf("Receita select did not appear in time; IE %s likely not found", ie)
			result.AddFailure(ie, "IE not found on the portal after advancing")
			continue
		}

		if err := s.selectReceitaAndOpenForm(); err != nil {
			log.Printf("Error selecting receita for IE %s: %v", ie, err)
			s.screenshots.CaptureError(s.portal, ErrorShotName("receita_dae", ie))
			result.AddFailure(ie, truncateReason(err.Error(), "failed to select the receita or open the DAE form"))
			continue
		}

		if err := s.fillDAEForm(item); err != nil {
			log.Printf("Error filling the DAE form for IE %s: %v", ie, err)
			s.screenshots.CaptureError(s.portal, ErrorShotName("form", ie))
			result.AddFailure(ie, truncateReason(err.Error(), "failed to fill the DAE form"))
			continue
		}

		solved, err := s.resolveAndFillCaptcha(ctx)
		if err != nil {
			log.Printf("Captcha error for IE %s: %v", ie, err)
			s.screenshots.CaptureError(s.portal, ErrorShotName("captcha", ie))
			result.AddFailure(ie, truncateReason(err.Error(), "error while processing the captcha"))
			continue
		}
		if !solved {
			result.AddFailure(ie, "captcha resolution failed")
			continue
		}

		result.AddSuccess(ie)
		log.Printf("IE %s completed (form and captcha filled, not submitted)", ie)
	}
	return nil
}

// enterIEAndAdvance fills the IE field and clicks advance. It returns
// found=false without an error when the receita select never shows up,
// which is the portal's way of saying the IE does not exist.
func (s *DAEBatchService) enterIEAndAdvance(ieDigits string) (bool, error) {
	sel := s.cfg.Selectors
	if err := s.portal.WaitVisible(sel.IEField, s.cfg.ElementTimeout); err != nil {
		return false, err
	}
	if err := s.portal.Fill(sel.IEField, ""); err != nil {
		return false, err
	}
	if err := s.portal.Fill(sel.IEField, ieDigits); err != nil {
		return false, err
	}
	log.Printf("IE field filled with %s", ieDigits)

	if err := s.portal.Click(sel.AdvanceButton); err != nil {
		return false, err
	}

	err := s.portal.WaitVisible(sel.ReceitaSelect, s.cfg.IEFoundTimeout)
	if err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// selectReceitaAndOpenForm picks the fixed receita option and opens the
// DAE form.
func (s *DAEBatchService) selectReceitaAndOpenForm() error {
	sel := s.cfg.Selectors
	if err := s.portal.SelectOption(sel.ReceitaSelect, s.cfg.ReceitaOptionValue); err != nil {
		return err
	}
	log.Printf("Receita option selected: %s", s.cfg.ReceitaOptionValue)

	if err := s.portal.Click(sel.FillDAEButton); err != nil {
		return err
	}
	return s.portal.WaitLoad()
}

// fillDAEForm writes the reference period, the payment date (day 20 of the
// month after the period) and the principal amount. It never clicks submit.
func (s *DAEBatchService) fillDAEForm(item models.WorkItem) error {
	sel := s.cfg.Selectors
	if err := s.portal.WaitVisible(sel.RefMonth, s.cfg.ElementTimeout); err != nil {
		return err
	}

	if err := s.portal.Fill(sel.RefMonth, fmt.Sprintf("%02d", item.RefMonth)); err != nil {
		return err
	}
	if err := s.portal.Fill(sel.RefYear, strconv.Itoa(item.RefYear)); err != nil {
		return err
	}

	payDay, payMonth, payYear := PaymentDate(item.RefMonth, item.RefYear)
	if err := s.portal.Fill(sel.PayDay, strconv.Itoa(payDay)); err != nil {
		return err
	}
	if err := s.portal.Fill(sel.PayMonth, fmt.Sprintf("%02d", payMonth)); err != nil {
		return err
	}
	if err := s.portal.Fill(sel.PayYear, strconv.Itoa(payYear)); err != nil {
		return err
	}

	if item.Amount != nil {
		amount := FormatAmount(*item.Amount)
		if err := s.portal.Fill(sel.Principal, amount); err != nil {
			return err
		}
		log.Printf("Form filled: period %02d/%d, amount %s", item.RefMonth, item.RefYear, amount)
	} else {
		log.Printf("No TOTAL amount for IE %s; principal field left blank", item.IE)
	}
	return nil
}

// resolveAndFillCaptcha screenshots the captcha image, resolves it through
// the configured solver and fills the answer field. A captcha that never
// appears is a trivial success, not a failure. The temp image is removed
// regardless of outcome.
func (s *DAEBatchService) resolveAndFillCaptcha(ctx context.Context) (bool, error) {
	sel := s.cfg.Selectors

	if err := s.portal.WaitVisible(sel.CaptchaImage, s.cfg.ElementTimeout); err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			log.Printf("Captcha image not present on the page, continuing")
			return true, nil
		}
		return false, err
	}

	tmp, err := os.CreateTemp("", "captcha_*.png")
	if err != nil {
		return false, fmt.Errorf("failed to create captcha temp file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := s.portal.ElementScreenshot(sel.CaptchaImage, path); err != nil {
		return false, fmt.Errorf("failed to capture the captcha image: %w", err)
	}

	// The solver call hits an external service; run it on its own goroutine
	// so the page-driving goroutine is not blocked inside the HTTP client.
	type solveResult struct {
		text string
		err  error
	}
	ch := make(chan solveResult, 1)
	go func() {
		text, err := s.solver.Resolve(ctx, path)
		ch <- solveResult{text: text, err: err}
	}()
	res := <-ch
	if res.err != nil {
		return false, res.err
	}
	if res.text == "" {
		log.Printf("Captcha solver returned no solution")
		return false, nil
	}

	answer := res.text
	if runes := []rune(answer); len(runes) > 6 {
		answer = string(runes[:6]) // the input has maxlength=6
	}
	if err := s.portal.Fill(sel.CaptchaInput, ""); err != nil {
		return false, err
	}
	if err := s.portal.Fill(sel.CaptchaInput, answer); err != nil {
		return false, err
	}
	log.Printf("Captcha filled")
	return true, nil
}

// PaymentDate returns the due date for a reference period: always day 20
// of the following month, rolling December into January of the next year.
func PaymentDate(refMonth, refYear int) (day, month, year int) {
	if refMonth == 12 {
		return 20, 1, refYear + 1
	}
	return 20, refMonth + 1, refYear
}

// FormatAmount renders a principal amount the way the portal expects:
// two decimals, "." as the decimal separator.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// truncateReason reduces an error message to a single ledger-sized line.
func truncateReason(msg, fallback string) string {
	line := strings.TrimSpace(strings.SplitN(msg, "\n", 2)[0])
	if line == "" {
		line = fallback
	}
	if runes := []rune(line); len(runes) > maxReasonLength {
		line = string(runes[:maxReasonLength-3]) + "..."
	}
	return line
}

func orEmpty(ie string) string {
	if ie == "" {
		return "(empty)"
	}
	return ie
}
