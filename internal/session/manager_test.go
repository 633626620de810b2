package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeJWT builds an unsigned token whose exp claim is at the given time.
func fakeJWT(exp time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return header + "." + payload + ".sig"
}

// refreshServer fakes the two-step renewal flow. It counts requests so tests
// can assert on network traffic.
type refreshServer struct {
	srv      *httptest.Server
	calls    atomic.Int64
	token    string
	rtExpiry int64
	failStep int // 1 or 2 to make that step fail, 0 for success
}

func newRefreshServer(t *testing.T) *refreshServer {
	t.Helper()
	rs := &refreshServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/jwt/ajaxrefresh", func(w http.ResponseWriter, r *http.Request) {
		rs.calls.Add(1)
		if rs.failStep == 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"login_url": rs.srv.URL + "/jwt/settoken",
			"steamID":   "76561198000000001",
			"nonce":     "abc123",
			"auth":      "def456",
		})
	})
	mux.HandleFunc("/jwt/settoken", func(w http.ResponseWriter, r *http.Request) {
		rs.calls.Add(1)
		if rs.failStep == 2 {
			_ = json.NewEncoder(w).Encode(map[string]any{"result": 0})
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("settoken form parse: %v", err)
		}
		if r.PostForm.Get("nonce") != "abc123" {
			t.Errorf("settoken did not receive forwarded nonce, form=%v", r.PostForm)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":   1,
			"token":    rs.token,
			"rtExpiry": rs.rtExpiry,
		})
	})
	rs.srv = httptest.NewServer(mux)
	t.Cleanup(rs.srv.Close)
	return rs
}

func newTestManager(t *testing.T, rs *refreshServer, provider InteractiveLoginProvider) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(testLogger(), Config{
		LoginBase: rs.srv.URL,
		Origins: map[string]string{
			"https://community.example": "https://community.example/my/inventory",
		},
		PriorPath:        filepath.Join(dir, "prior.json"),
		CookiePath:       filepath.Join(dir, "cookies.json"),
		RefreshThreshold: 30 * time.Minute,
	}, provider)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func seedPrior(t *testing.T, m *Manager, origin string, p Prior) {
	t.Helper()
	data, err := json.Marshal(map[string]Prior{origin: p})
	if err != nil {
		t.Fatalf("marshal prior: %v", err)
	}
	if err := os.WriteFile(m.cfg.PriorPath, data, 0o600); err != nil {
		t.Fatalf("seed prior: %v", err)
	}
}

type fakeProvider struct {
	calls  int
	priors map[string]Prior
	err    error
}

func (f *fakeProvider) Login(ctx context.Context, jar http.CookieJar, origins map[string]string) (map[string]Prior, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, _ := url.Parse("https://community.example")
	jar.SetCookies(u, []*http.Cookie{{Name: "steamLoginSecure", Value: "fresh"}})
	return f.priors, nil
}

func TestEnsureValidFreshTokenNoNetwork(t *testing.T) {
	rs := newRefreshServer(t)
	m := newTestManager(t, rs, nil)
	seedPrior(t, m, "https://community.example", Prior{
		Token:  "tok",
		Expiry: time.Now().Add(2 * time.Hour),
	})

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("second EnsureValid: %v", err)
	}
	if got := rs.calls.Load(); got != 0 {
		t.Fatalf("fresh token must cost no requests, got %d", got)
	}
}

func TestEnsureValidRefreshesExpiringToken(t *testing.T) {
	rs := newRefreshServer(t)
	rs.token = "new-token"
	rs.rtExpiry = time.Now().Add(24 * time.Hour).Unix()

	m := newTestManager(t, rs, nil)
	seedPrior(t, m, "https://community.example", Prior{
		Token:  "old-token",
		Expiry: time.Now().Add(5 * time.Minute), // inside the 30m threshold
	})

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if got := rs.calls.Load(); got != 2 {
		t.Fatalf("expected the two-step exchange, got %d requests", got)
	}

	p, ok := m.Token("https://community.example")
	if !ok || p.Token != "new-token" {
		t.Fatalf("token not updated: %+v", p)
	}

	// The renewed token is fresh: a second pass stays offline.
	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("second EnsureValid: %v", err)
	}
	if got := rs.calls.Load(); got != 2 {
		t.Fatalf("renewed token must cost no further requests, got %d", got)
	}
}

func TestEnsureValidExpiryFromJWTWhenMissing(t *testing.T) {
	exp := time.Now().Add(12 * time.Hour).Truncate(time.Second)

	rs := newRefreshServer(t)
	rs.token = fakeJWT(exp)
	rs.rtExpiry = 0

	m := newTestManager(t, rs, nil)
	seedPrior(t, m, "https://community.example", Prior{Token: "old"})

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	p, _ := m.Token("https://community.example")
	if !p.Expiry.Equal(exp) {
		t.Fatalf("expiry got=%v want=%v (from exp claim)", p.Expiry, exp)
	}
}

func TestEnsureValidPersistsRenewedToken(t *testing.T) {
	rs := newRefreshServer(t)
	rs.token = "persisted-token"
	rs.rtExpiry = time.Now().Add(24 * time.Hour).Unix()

	m := newTestManager(t, rs, nil)
	seedPrior(t, m, "https://community.example", Prior{Token: "old"})

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}

	data, err := os.ReadFile(m.cfg.PriorPath)
	if err != nil {
		t.Fatalf("reading prior file: %v", err)
	}
	var stored map[string]Prior
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("parsing prior file: %v", err)
	}
	if stored["https://community.example"].Token != "persisted-token" {
		t.Fatalf("renewed token not persisted: %+v", stored)
	}
}

func TestEnsureValidFallsBackToLogin(t *testing.T) {
	rs := newRefreshServer(t)
	rs.failStep = 2

	provider := &fakeProvider{priors: map[string]Prior{
		"https://community.example": {Token: "login-token", Expiry: time.Now().Add(24 * time.Hour)},
	}}
	m := newTestManager(t, rs, provider)
	seedPrior(t, m, "https://community.example", Prior{Token: "old"})

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls got=%d want=1", provider.calls)
	}
	p, _ := m.Token("https://community.example")
	if p.Token != "login-token" {
		t.Fatalf("token after login got=%q want=login-token", p.Token)
	}
}

func TestEnsureValidNoStateGoesStraightToLogin(t *testing.T) {
	rs := newRefreshServer(t)
	provider := &fakeProvider{priors: map[string]Prior{
		"https://community.example": {Token: "login-token", Expiry: time.Now().Add(24 * time.Hour)},
	}}
	m := newTestManager(t, rs, provider)

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls got=%d want=1", provider.calls)
	}
	if got := rs.calls.Load(); got != 0 {
		t.Fatalf("no stored tokens means no refresh attempt, got %d requests", got)
	}
}

func TestEnsureValidCorruptStateFilesFallBackToLogin(t *testing.T) {
	rs := newRefreshServer(t)
	provider := &fakeProvider{priors: map[string]Prior{
		"https://community.example": {Token: "login-token", Expiry: time.Now().Add(24 * time.Hour)},
	}}
	m := newTestManager(t, rs, provider)

	// A crash mid-write leaves truncated JSON on disk. That must read as "no
	// session", not as a fatal error.
	if err := os.WriteFile(m.cfg.CookiePath, []byte(`{not json`), 0o600); err != nil {
		t.Fatalf("seed cookie file: %v", err)
	}
	if err := os.WriteFile(m.cfg.PriorPath, []byte(`garbage`), 0o600); err != nil {
		t.Fatalf("seed prior file: %v", err)
	}

	if err := m.EnsureValid(context.Background()); err != nil {
		t.Fatalf("EnsureValid with corrupt state files: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls got=%d want=1", provider.calls)
	}
	p, _ := m.Token("https://community.example")
	if p.Token != "login-token" {
		t.Fatalf("token after login got=%q want=login-token", p.Token)
	}

	// The login rewrote both files; a second pass must load them cleanly.
	data, err := os.ReadFile(m.cfg.PriorPath)
	if err != nil {
		t.Fatalf("reading prior file: %v", err)
	}
	var stored map[string]Prior
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("prior file not repaired: %v", err)
	}
}

func TestEnsureValidLoginFailureSurfaces(t *testing.T) {
	rs := newRefreshServer(t)
	provider := &fakeProvider{err: errors.New("browser crashed")}
	m := newTestManager(t, rs, provider)

	if err := m.EnsureValid(context.Background()); err == nil {
		t.Fatal("expected an error when login fails and no tokens exist")
	}
}

func TestParseJWTExpiry(t *testing.T) {
	exp := time.Unix(1900000000, 0)
	got, ok := ParseJWTExpiry(fakeJWT(exp))
	if !ok || !got.Equal(exp) {
		t.Fatalf("ParseJWTExpiry got=(%v,%v) want=(%v,true)", got, ok, exp)
	}

	if _, ok := ParseJWTExpiry("garbage"); ok {
		t.Fatal("garbage must not parse")
	}
	if _, ok := ParseJWTExpiry("a.b.c"); ok {
		t.Fatal("non-base64 payload must not parse")
	}
}
