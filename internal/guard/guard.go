// Package guard generates the one-time login codes and mobile confirmation
// keys derived from the account's shared secret. The code alphabet and time
// window match the official mobile authenticator.
package guard

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// codeChars is the authenticator's code alphabet (no ambiguous characters).
const codeChars = "23456789BCDFGHJKMNPQRTVWXY"

// codeLength is the number of characters in a one-time code.
const codeLength = 5

// codeWindow is the validity window of a single code.
const codeWindow = 30 * time.Second

// GenerateCode produces the one-time login code for the given base64-encoded
// shared secret at time now.
func GenerateCode(sharedSecret string, now time.Time) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("guard: decode shared secret: %w", err)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(now.Unix())/uint64(codeWindow.Seconds()))

	mac := hmac.New(sha1.New, secret)
	mac.Write(buf[:])
	digest := mac.Sum(nil)

	offset := digest[len(digest)-1] & 0x0f
	code := binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7fffffff

	out := make([]byte, codeLength)
	for i := range out {
		out[i] = codeChars[code%uint32(len(codeChars))]
		code /= uint32(len(codeChars))
	}
	return string(out), nil
}

// GenerateConfirmationKey produces the key used to list or act on mobile
// confirmations. The tag identifies the operation ("conf", "allow",
// "cancel", "details").
func GenerateConfirmationKey(identitySecret, tag string, now time.Time) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(identitySecret)
	if err != nil {
		return "", fmt.Errorf("guard: decode identity secret: %w", err)
	}

	buf := make([]byte, 8, 8+len(tag))
	binary.BigEndian.PutUint64(buf, uint64(now.Unix()))
	buf = append(buf, tag...)

	mac := hmac.New(sha1.New, secret)
	mac.Write(buf)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// GenerateDeviceID derives the stable device identifier the confirmation
// endpoints expect for a given account ID.
func GenerateDeviceID(steamID string) string {
	sum := sha1.Sum([]byte(steamID))
	hexed := fmt.Sprintf("%x", sum)
	return fmt.Sprintf("android:%s-%s-%s-%s-%s",
		hexed[0:8], hexed[8:12], hexed[12:16], hexed[16:20], hexed[20:32])
}
