package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"sefazdae/config"
)

// ErrWaitTimeout signals that an element did not become visible within its
// bounded wait. For some steps that is an expected outcome (IE not found,
// captcha not present), so callers branch on it instead of failing.
var ErrWaitTimeout = errors.New("timed out waiting for element")

// PortalPage is the narrow surface of a browser page the DAE flow needs.
// The production implementation wraps a playwright page; tests substitute
// an in-memory fake.
type PortalPage interface {
	Goto(url string) error
	WaitLoad() error
	Fill(selector, value string) error
	Click(selector string) error
	SelectOption(selector, value string) error
	WaitVisible(selector string, timeout time.Duration) error
	Screenshot(path string) error
	ElementScreenshot(selector, path string) error
}

type playwrightPortalPage struct {
	page playwright.Page
	cfg  *config.Config
}

// NewPortalPage wraps a playwright page with the configured timeouts.
func NewPortalPage(page playwright.Page, cfg *config.Config) PortalPage {
	return &playwrightPortalPage{page: page, cfg: cfg}
}

func (p *playwrightPortalPage) Goto(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(float64(p.cfg.PageLoadTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPortalPage) WaitLoad() error {
	return WaitPageLoad(p.page, p.cfg.PageLoadTimeout)
}

func (p *playwrightPortalPage) Fill(selector, value string) error {
	return p.page.Locator(selector).Fill(value)
}

func (p *playwrightPortalPage) Click(selector string) error {
	return p.page.Locator(selector).Click()
}

func (p *playwrightPortalPage) SelectOption(selector, value string) error {
	_, err := p.page.Locator(selector).SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice(value),
	})
	return err
}

func (p *playwrightPortalPage) WaitVisible(selector string, timeout time.Duration) error {
	err := p.page.Locator(selector).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("%w: %s", ErrWaitTimeout, selector)
		}
		return err
	}
	return nil
}

func (p *playwrightPortalPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	})
	return err
}

func (p *playwrightPortalPage) ElementScreenshot(selector, path string) error {
	_, err := p.page.Locator(selector).Screenshot(playwright.LocatorScreenshotOptions{
		Path: playwright.String(path),
	})
	return err
}
