package browser

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/tradebotlabs/steambot/internal/domain"
)

func tokenWithExp(exp time.Time) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return header + "." + payload + ".sig"
}

func TestPriorFromCookies(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	token := tokenWithExp(exp)

	cookies := []*network.Cookie{
		{Name: "sessionid", Value: "aaa"},
		{Name: sessionCookie, Value: "76561198000000001%7C%7C" + token},
	}

	prior, err := priorFromCookies(cookies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prior.Token != token {
		t.Fatalf("token mismatch: %q", prior.Token)
	}
	if !prior.Expiry.Equal(exp) {
		t.Fatalf("expiry got=%v want=%v", prior.Expiry, exp)
	}
}

func TestPriorFromCookiesMissingSession(t *testing.T) {
	_, err := priorFromCookies([]*network.Cookie{{Name: "sessionid", Value: "aaa"}})
	if !errors.Is(err, domain.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}

func TestPriorFromCookiesBadFormat(t *testing.T) {
	_, err := priorFromCookies([]*network.Cookie{{Name: sessionCookie, Value: "no-separator"}})
	if !errors.Is(err, domain.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}
