// Package session keeps the marketplace web session alive. It maintains one
// refresh token per origin (community and store), renews tokens through the
// two-step JWT refresh endpoint before they expire, persists cookies and
// tokens across restarts, and falls back to an interactive browser login when
// silent renewal is no longer possible.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/httpx"
)

// Prior is one origin's refresh token and its expiry.
type Prior struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// InteractiveLoginProvider performs a full browser login and returns the
// fresh per-origin tokens. Implementations are expected to deposit session
// cookies into the jar they are given.
type InteractiveLoginProvider interface {
	Login(ctx context.Context, jar http.CookieJar, origins map[string]string) (map[string]Prior, error)
}

// Config wires a Manager.
type Config struct {
	// LoginBase is the SSO host, e.g. "https://login.steampowered.com".
	LoginBase string

	// Origins maps each origin that needs a token to the referer URL used
	// during refresh, e.g. community origin -> inventory page.
	Origins map[string]string

	// PriorPath and CookiePath are the JSON persistence files.
	PriorPath  string
	CookiePath string

	// RefreshThreshold is how long before expiry a token is renewed.
	// Defaults to 30 minutes.
	RefreshThreshold time.Duration
}

// Manager owns the session lifecycle. All public methods are safe for
// concurrent use; EnsureValid is single-flight, so concurrent callers share
// one refresh or login instead of racing their own.
type Manager struct {
	log      *slog.Logger
	cfg      Config
	jar      *PersistentJar
	client   *http.Client
	retry    httpx.Policy
	provider InteractiveLoginProvider
	now      func() time.Time

	mu           sync.Mutex
	priors       map[string]Prior
	priorsLoaded bool
}

// NewManager creates a Manager. The returned manager's Client must be used
// for all authenticated marketplace calls so they share the cookie jar.
func NewManager(log *slog.Logger, cfg Config, provider InteractiveLoginProvider) (*Manager, error) {
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = 30 * time.Minute
	}
	if len(cfg.Origins) == 0 {
		return nil, fmt.Errorf("session: no origins configured")
	}

	jar, err := NewPersistentJar()
	if err != nil {
		return nil, err
	}

	return &Manager{
		log:      log.With(slog.String("component", "session")),
		cfg:      cfg,
		jar:      jar,
		client:   &http.Client{Jar: jar, Timeout: 30 * time.Second},
		retry:    httpx.DefaultPolicy(),
		provider: provider,
		now:      time.Now,
		priors:   make(map[string]Prior),
	}, nil
}

// Client returns the HTTP client bound to the session's cookie jar.
func (m *Manager) Client() *http.Client {
	return m.client
}

// Token returns the current token for an origin, if any.
func (m *Manager) Token(origin string) (Prior, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.priors[origin]
	return p, ok
}

// EnsureValid brings every configured origin's token to a usable state. A
// token is usable when it expires more than the refresh threshold from now;
// usable tokens cost no network traffic, so calling EnsureValid before every
// batch of requests is cheap. Expired or missing tokens are renewed through
// the refresh endpoint, and a full interactive login is the fallback when
// renewal fails.
func (m *Manager) EnsureValid(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.priorsLoaded {
		m.loadStateLocked()
		m.priorsLoaded = true
	}

	if len(m.priors) == 0 {
		return m.fullLoginLocked(ctx)
	}

	var refreshErr error
	for origin, referer := range m.cfg.Origins {
		prior := m.priors[origin]
		if !m.needsRefreshLocked(prior) {
			continue
		}
		if err := m.refreshLocked(ctx, origin, referer, prior); err != nil {
			m.log.Warn("token refresh failed",
				slog.String("origin", origin),
				slog.String("error", err.Error()))
			refreshErr = err
		}
	}

	if refreshErr != nil {
		if err := m.fullLoginLocked(ctx); err != nil {
			return fmt.Errorf("session: refresh and login both failed: %w", err)
		}
	}

	if _, err := m.jar.Save(m.cfg.CookiePath); err != nil {
		m.log.Warn("saving cookies failed", slog.String("error", err.Error()))
	}
	return nil
}

// ForceLogin runs the interactive login flow even when stored tokens are
// still usable. Used to seed a session on a fresh machine or to recover from
// a revoked device.
func (m *Manager) ForceLogin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.priorsLoaded {
		m.loadStateLocked()
		m.priorsLoaded = true
	}
	return m.fullLoginLocked(ctx)
}

// needsRefreshLocked reports whether a token is missing or inside the
// refresh threshold.
func (m *Manager) needsRefreshLocked(p Prior) bool {
	if p.Token == "" || p.Expiry.IsZero() {
		return true
	}
	return !m.now().Before(p.Expiry.Add(-m.cfg.RefreshThreshold))
}

// refreshResult is the second refresh response.
type refreshResult struct {
	Result   int    `json:"result"`
	Token    string `json:"token"`
	RTExpiry int64  `json:"rtExpiry"`
}

// refreshLocked performs the two-step token renewal for one origin:
//
//  1. POST {login}/jwt/ajaxrefresh with the origin's referer; the response
//     carries success, a login_url, and a set of opaque parameters.
//  2. POST those parameters back to login_url, adding the origin's prior
//     token; the response carries the new token and its expiry.
//
// When the response omits rtExpiry, the expiry is recovered from the JWT's
// own exp claim.
func (m *Manager) refreshLocked(ctx context.Context, origin, referer string, prior Prior) error {
	first, err := m.postForm(ctx, m.cfg.LoginBase+"/jwt/ajaxrefresh", origin, referer, url.Values{
		"redir": {referer},
	})
	if err != nil {
		return err
	}

	var step map[string]any
	if err := json.Unmarshal(first, &step); err != nil {
		return fmt.Errorf("session: ajaxrefresh returned non-json: %w", domain.ErrSessionRefresh)
	}
	if ok, _ := step["success"].(bool); !ok {
		return fmt.Errorf("session: ajaxrefresh returned success=false: %w", domain.ErrSessionRefresh)
	}
	loginURL, _ := step["login_url"].(string)
	if loginURL == "" {
		return fmt.Errorf("session: ajaxrefresh did not provide login_url: %w", domain.ErrSessionRefresh)
	}

	form := url.Values{}
	for k, v := range step {
		switch val := v.(type) {
		case string:
			form.Set(k, val)
		case bool:
			form.Set(k, fmt.Sprintf("%t", val))
		case float64:
			form.Set(k, strconv.FormatFloat(val, 'f', -1, 64))
		}
	}
	if prior.Token != "" {
		form.Set("prior", prior.Token)
	}

	second, err := m.postForm(ctx, loginURL, origin, referer, form)
	if err != nil {
		return err
	}

	var res refreshResult
	if err := json.Unmarshal(second, &res); err != nil {
		return fmt.Errorf("session: settoken returned non-json: %w", domain.ErrSessionRefresh)
	}
	if res.Result != 1 || res.Token == "" {
		return fmt.Errorf("session: refresh returned result=%d: %w", res.Result, domain.ErrSessionRefresh)
	}

	expiry := time.Unix(res.RTExpiry, 0)
	if res.RTExpiry == 0 {
		if exp, ok := ParseJWTExpiry(res.Token); ok {
			expiry = exp
		} else {
			// Without any expiry signal, renew again on the next cycle.
			expiry = m.now()
		}
	}

	m.priors[origin] = Prior{Token: res.Token, Expiry: expiry}
	m.log.Info("token refreshed",
		slog.String("origin", origin),
		slog.Time("expiry", expiry))
	return m.savePriorsLocked()
}

// postForm runs one form POST through the retry policy and returns the body.
func (m *Manager) postForm(ctx context.Context, endpoint, origin, referer string, form url.Values) ([]byte, error) {
	body := form.Encode()

	resp, err := m.retry.Do(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Referer", referer)
		req.Header.Set("Origin", origin)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		return m.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("session: POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session: POST %s: status %d: %w", endpoint, resp.StatusCode, domain.ErrSessionRefresh)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("session: reading %s response: %w", endpoint, err)
	}
	return data, nil
}

// fullLoginLocked delegates to the interactive provider and stores the
// resulting tokens and cookies.
func (m *Manager) fullLoginLocked(ctx context.Context) error {
	if m.provider == nil {
		return fmt.Errorf("session: no interactive login provider: %w", domain.ErrLoginFailed)
	}

	m.log.Info("starting interactive login")
	priors, err := m.provider.Login(ctx, m.jar, m.cfg.Origins)
	if err != nil {
		return fmt.Errorf("session: interactive login: %w", err)
	}
	for origin, p := range priors {
		m.priors[origin] = p
	}

	if err := m.savePriorsLocked(); err != nil {
		return err
	}
	if _, err := m.jar.Save(m.cfg.CookiePath); err != nil {
		return err
	}
	m.log.Info("interactive login complete", slog.Int("origins", len(priors)))
	return nil
}

// loadStateLocked restores cookies and tokens from disk. Files that are
// missing, unreadable or corrupt (a crash mid-write leaves a truncated file)
// leave the manager empty, which routes the first EnsureValid through a full
// login; the next save then replaces the bad file.
func (m *Manager) loadStateLocked() {
	if _, err := m.jar.Load(m.cfg.CookiePath); err != nil {
		m.log.Warn("cookie file unusable, starting without a session",
			slog.String("path", m.cfg.CookiePath),
			slog.String("error", err.Error()))
	}

	data, err := os.ReadFile(m.cfg.PriorPath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn("token file unreadable, starting without a session",
				slog.String("path", m.cfg.PriorPath),
				slog.String("error", err.Error()))
		}
		return
	}
	priors := make(map[string]Prior)
	if err := json.Unmarshal(data, &priors); err != nil {
		m.log.Warn("token file corrupt, starting without a session",
			slog.String("path", m.cfg.PriorPath),
			slog.String("error", err.Error()))
		return
	}
	m.priors = priors
}

func (m *Manager) savePriorsLocked() error {
	data, err := json.MarshalIndent(m.priors, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encoding tokens: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.PriorPath), 0o700); err != nil {
		return fmt.Errorf("session: creating session dir: %w", err)
	}
	tmp := m.cfg.PriorPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: writing tokens: %w", err)
	}
	if err := os.Rename(tmp, m.cfg.PriorPath); err != nil {
		return fmt.Errorf("session: replacing token file: %w", err)
	}
	return nil
}

// ParseJWTExpiry extracts the exp claim from a JWT without verifying the
// signature. The token is only used to schedule our own renewal.
func ParseJWTExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.Exp, 0), true
}
