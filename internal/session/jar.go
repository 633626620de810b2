package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// storedCookie is the on-disk representation of one cookie.
type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// PersistentJar is an http.CookieJar that can round-trip its contents through
// a JSON file. The standard cookiejar does not expose stored cookies, so the
// jar records every SetCookies call keyed by origin and serialises the
// recording.
//
// Save is fingerprint-guarded: when the cookie set has not changed since the
// last Save or Load, the file is left untouched.
type PersistentJar struct {
	mu       sync.Mutex
	inner    *cookiejar.Jar
	recorded map[string]map[string]storedCookie // origin -> cookie name -> cookie
	lastHash string
}

var _ http.CookieJar = (*PersistentJar)(nil)

// NewPersistentJar creates an empty jar.
func NewPersistentJar() (*PersistentJar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("session: creating cookie jar: %w", err)
	}
	return &PersistentJar{
		inner:    inner,
		recorded: make(map[string]map[string]storedCookie),
	}, nil
}

// SetCookies implements http.CookieJar.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	origin := u.Scheme + "://" + u.Host
	byName := j.recorded[origin]
	if byName == nil {
		byName = make(map[string]storedCookie)
		j.recorded[origin] = byName
	}
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(byName, c.Name)
			continue
		}
		byName[c.Name] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
	}
	j.mu.Unlock()

	j.inner.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// Fingerprint returns a stable hash of the jar's recorded cookie names and
// values.
func (j *PersistentJar) Fingerprint() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fingerprintLocked()
}

func (j *PersistentJar) fingerprintLocked() string {
	var pairs []string
	for origin, byName := range j.recorded {
		for name, c := range byName {
			pairs = append(pairs, origin+"\x00"+name+"\x00"+c.Value)
		}
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Save writes the jar to path if its contents changed since the last Save or
// Load. It reports whether a write happened.
func (j *PersistentJar) Save(path string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	hash := j.fingerprintLocked()
	if hash == j.lastHash {
		return false, nil
	}

	out := make(map[string][]storedCookie, len(j.recorded))
	for origin, byName := range j.recorded {
		cookies := make([]storedCookie, 0, len(byName))
		for _, c := range byName {
			cookies = append(cookies, c)
		}
		sort.Slice(cookies, func(a, b int) bool { return cookies[a].Name < cookies[b].Name })
		out[origin] = cookies
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return false, fmt.Errorf("session: encoding cookies: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("session: creating session dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return false, fmt.Errorf("session: writing cookies: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return false, fmt.Errorf("session: replacing cookie file: %w", err)
	}

	j.lastHash = hash
	return true, nil
}

// Load reads a file written by Save into the jar. A missing file is not an
// error; it reports whether anything was loaded.
func (j *PersistentJar) Load(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("session: reading cookies: %w", err)
	}

	var stored map[string][]storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return false, fmt.Errorf("session: parsing cookie file: %w", err)
	}

	for origin, cookies := range stored {
		u, err := url.Parse(origin)
		if err != nil {
			continue
		}
		hc := make([]*http.Cookie, 0, len(cookies))
		for _, c := range cookies {
			hc = append(hc, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     c.Path,
				Domain:   c.Domain,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			})
		}
		j.SetCookies(u, hc)
	}

	j.mu.Lock()
	j.lastHash = j.fingerprintLocked()
	j.mu.Unlock()
	return true, nil
}
