package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Atomic page interactions against the portal. Pure pass-throughs to
// playwright with logging; no business logic lives here.

// WaitPageLoad blocks until the page reaches networkidle.
func WaitPageLoad(page playwright.Page, timeout time.Duration) error {
	log.Printf("Waiting for networkidle state")
	err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("page did not reach networkidle: %w", err)
	}
	return nil
}

// clickTarget is the locator surface the text click helpers need.
type clickTarget interface {
	WaitFor(options ...playwright.LocatorWaitForOptions) error
	Click(options ...playwright.LocatorClickOptions) error
}

// ClickLinkByText waits for a link with the exact visible text and clicks it.
func ClickLinkByText(page playwright.Page, text string, timeout time.Duration) error {
	log.Printf("Looking for link with text: %s", text)
	locator := page.GetByRole(*playwright.AriaRoleLink, playwright.PageGetByRoleOptions{Name: text, Exact: playwright.Bool(true)})
	return clickWhenVisible(locator, fmt.Sprintf("link %q", text), timeout)
}

// ClickByText waits for any element with the exact visible text and clicks it.
func ClickByText(page playwright.Page, text string, timeout time.Duration) error {
	log.Printf("Looking for element with text: %s", text)
	locator := page.GetByText(text, playwright.PageGetByTextOptions{Exact: playwright.Bool(true)})
	return clickWhenVisible(locator, fmt.Sprintf("element %q", text), timeout)
}

func clickWhenVisible(target clickTarget, what string, timeout time.Duration) error {
	if err := target.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("%s not visible: %w", what, err)
	}
	if err := target.Click(); err != nil {
		return fmt.Errorf("failed to click %s: %w", what, err)
	}
	log.Printf("Clicked %s", what)
	return nil
}

// SaveScreenshotToDir captures the current page into dir/filename, creating
// the directory if missing, and returns the saved path.
func SaveScreenshotToDir(page PortalPage, dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := page.Screenshot(path); err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	log.Printf("Screenshot saved: %s", path)
	return path, nil
}
