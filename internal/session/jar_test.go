package session

import (
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestPersistentJarSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")

	jar, err := NewPersistentJar()
	if err != nil {
		t.Fatalf("NewPersistentJar: %v", err)
	}
	u := mustURL(t, "https://community.example")
	jar.SetCookies(u, []*http.Cookie{
		{Name: "sessionid", Value: "abc"},
		{Name: "steamLoginSecure", Value: "def"},
	})

	wrote, err := jar.Save(path)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !wrote {
		t.Fatal("first save must write")
	}

	restored, err := NewPersistentJar()
	if err != nil {
		t.Fatalf("NewPersistentJar: %v", err)
	}
	loaded, err := restored.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded {
		t.Fatal("expected the file to load")
	}

	got := restored.Cookies(u)
	byName := make(map[string]string, len(got))
	for _, c := range got {
		byName[c.Name] = c.Value
	}
	if byName["sessionid"] != "abc" || byName["steamLoginSecure"] != "def" {
		t.Fatalf("restored cookies mismatch: %v", byName)
	}
}

func TestPersistentJarSaveSkipsWhenUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")

	jar, err := NewPersistentJar()
	if err != nil {
		t.Fatalf("NewPersistentJar: %v", err)
	}
	u := mustURL(t, "https://community.example")
	jar.SetCookies(u, []*http.Cookie{{Name: "sessionid", Value: "abc"}})

	if wrote, err := jar.Save(path); err != nil || !wrote {
		t.Fatalf("first save got=(%v,%v) want=(true,nil)", wrote, err)
	}
	if wrote, err := jar.Save(path); err != nil || wrote {
		t.Fatalf("unchanged save got=(%v,%v) want=(false,nil)", wrote, err)
	}

	jar.SetCookies(u, []*http.Cookie{{Name: "sessionid", Value: "changed"}})
	if wrote, err := jar.Save(path); err != nil || !wrote {
		t.Fatalf("changed save got=(%v,%v) want=(true,nil)", wrote, err)
	}
}

func TestPersistentJarFingerprintTracksValues(t *testing.T) {
	jar, err := NewPersistentJar()
	if err != nil {
		t.Fatalf("NewPersistentJar: %v", err)
	}
	u := mustURL(t, "https://community.example")

	before := jar.Fingerprint()
	jar.SetCookies(u, []*http.Cookie{{Name: "sessionid", Value: "abc"}})
	after := jar.Fingerprint()
	if before == after {
		t.Fatal("fingerprint must change when cookies change")
	}
	if after != jar.Fingerprint() {
		t.Fatal("fingerprint must be stable for an unchanged jar")
	}
}

func TestPersistentJarLoadMissingFile(t *testing.T) {
	jar, err := NewPersistentJar()
	if err != nil {
		t.Fatalf("NewPersistentJar: %v", err)
	}
	loaded, err := jar.Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if loaded {
		t.Fatal("missing file must report not loaded")
	}
}
