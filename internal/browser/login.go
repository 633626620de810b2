// Package browser drives a real Chrome instance through the marketplace
// login flow. It is the fallback path when silent token renewal fails: the
// login form is filled, the one-time guard code typed in, and the resulting
// session cookies and refresh tokens handed back to the session manager.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/guard"
	"github.com/tradebotlabs/steambot/internal/session"
)

// sessionCookie is the cookie that marks a completed login.
const sessionCookie = "steamLoginSecure"

// Config wires a LoginExecutor.
type Config struct {
	Username     string
	Password     string
	SharedSecret string

	// ProfileDir persists the Chrome profile between runs so repeat logins
	// reuse device trust.
	ProfileDir string

	// LoginPath is appended to each origin to reach its login form.
	// Defaults to "/login".
	LoginPath string

	// ManualTimeout bounds how long to wait for a human to finish the form
	// when no shared secret is configured. Defaults to 5 minutes.
	ManualTimeout time.Duration
}

// LoginExecutor implements session.InteractiveLoginProvider with chromedp.
// With a shared secret it runs headless and types the guard code itself;
// without one it opens a visible window and waits for the operator.
type LoginExecutor struct {
	log *slog.Logger
	cfg Config
}

var _ session.InteractiveLoginProvider = (*LoginExecutor)(nil)

// NewLoginExecutor creates a LoginExecutor.
func NewLoginExecutor(log *slog.Logger, cfg Config) *LoginExecutor {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.ManualTimeout <= 0 {
		cfg.ManualTimeout = 5 * time.Minute
	}
	return &LoginExecutor{
		log: log.With(slog.String("component", "browser")),
		cfg: cfg,
	}
}

// Login performs the interactive flow for every origin and returns the
// per-origin refresh tokens extracted from the session cookie.
func (e *LoginExecutor) Login(ctx context.Context, jar http.CookieJar, origins map[string]string) (map[string]session.Prior, error) {
	manual := e.cfg.SharedSecret == ""

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !manual),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1200,800"),
	)
	if e.cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(e.cfg.ProfileDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	priors := make(map[string]session.Prior, len(origins))
	for origin := range origins {
		loginURL := strings.TrimRight(origin, "/") + e.cfg.LoginPath
		e.log.Info("browser login", slog.String("origin", origin), slog.Bool("manual", manual))

		if err := e.loginOne(browserCtx, loginURL, manual); err != nil {
			return nil, fmt.Errorf("browser: login at %s: %w", loginURL, err)
		}

		cookies, err := e.harvestCookies(browserCtx, jar, origin)
		if err != nil {
			return nil, err
		}

		prior, err := priorFromCookies(cookies)
		if err != nil {
			return nil, fmt.Errorf("browser: %s: %w", origin, err)
		}
		priors[origin] = prior
	}
	return priors, nil
}

// loginOne navigates to one login form and completes it. The flow is done
// once the session cookie shows up; a profile with live device trust may
// skip the form entirely.
func (e *LoginExecutor) loginOne(ctx context.Context, loginURL string, manual bool) error {
	if err := chromedp.Run(ctx, chromedp.Navigate(loginURL)); err != nil {
		return err
	}

	if already, err := e.hasSessionCookie(ctx); err == nil && already {
		return nil
	}

	if manual {
		e.log.Info("waiting for manual sign-in in the browser window")
		return e.waitForSessionCookie(ctx, e.cfg.ManualTimeout)
	}

	err := chromedp.Run(ctx,
		chromedp.WaitVisible(`input[type='text']`, chromedp.ByQuery),
		chromedp.SendKeys(`input[type='text']`, e.cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[type='password']`, e.cfg.Password, chromedp.ByQuery),
		chromedp.Click(`button[type='submit']`, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return err
	}

	code, err := guard.GenerateCode(e.cfg.SharedSecret, time.Now())
	if err != nil {
		return err
	}

	// The code inputs focus-advance on their own; type one digit at a time
	// like a human would.
	actions := []chromedp.Action{
		chromedp.WaitVisible(`input[autocomplete='one-time-code']`, chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
	}
	for _, ch := range code {
		actions = append(actions,
			chromedp.KeyEvent(string(ch)),
			chromedp.Sleep(300*time.Millisecond),
		)
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return err
	}

	return e.waitForSessionCookie(ctx, 30*time.Second)
}

// hasSessionCookie reports whether the browser already holds the login
// cookie.
func (e *LoginExecutor) hasSessionCookie(ctx context.Context) (bool, error) {
	var found bool
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			if c.Name == sessionCookie {
				found = true
				return nil
			}
		}
		return nil
	}))
	return found, err
}

// waitForSessionCookie polls until the login cookie appears or the deadline
// passes.
func (e *LoginExecutor) waitForSessionCookie(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		found, err := e.hasSessionCookie(ctx)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("timed out waiting for %s cookie: %w", sessionCookie, domain.ErrLoginFailed)
}

// harvestCookies copies the browser's cookies for one origin into the
// session jar and returns them.
func (e *LoginExecutor) harvestCookies(ctx context.Context, jar http.CookieJar, origin string) ([]*network.Cookie, error) {
	originURL, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("browser: parsing origin %q: %w", origin, err)
	}

	var all []*network.Cookie
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		all = cookies
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("browser: reading cookies: %w", err)
	}

	var matched []*network.Cookie
	var httpCookies []*http.Cookie
	for _, c := range all {
		if !strings.HasSuffix(originURL.Host, strings.TrimPrefix(c.Domain, ".")) {
			continue
		}
		matched = append(matched, c)
		httpCookies = append(httpCookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	jar.SetCookies(originURL, httpCookies)
	return matched, nil
}

// priorFromCookies extracts the refresh token embedded in the session
// cookie. The value is "<steamid>%7C%7C<jwt>"; the JWT's exp claim provides
// the expiry.
func priorFromCookies(cookies []*network.Cookie) (session.Prior, error) {
	for _, c := range cookies {
		if c.Name != sessionCookie {
			continue
		}
		decoded, err := url.QueryUnescape(c.Value)
		if err != nil {
			decoded = c.Value
		}
		parts := strings.Split(decoded, "||")
		if len(parts) != 2 {
			return session.Prior{}, fmt.Errorf("unexpected %s format: %w", sessionCookie, domain.ErrLoginFailed)
		}
		token := parts[1]
		prior := session.Prior{Token: token}
		if exp, ok := session.ParseJWTExpiry(token); ok {
			prior.Expiry = exp
		}
		return prior, nil
	}
	return session.Prior{}, fmt.Errorf("no %s cookie after login: %w", sessionCookie, domain.ErrLoginFailed)
}
