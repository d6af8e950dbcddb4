// Package signing implements a minimal HMAC helper for generating and verifying
// signed download links. A link with expiry 0 never expires, which is how the
// shelf hands out permanent share links.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns the hex signature for inputs.
func (s *Signer) Sign(fileID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	// The payload is "<id>:<expiry>" so neither part can be swapped alone.
	payload := fmt.Sprintf("%s:%d", fileID, expiresUnix)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate compares the provided signature with the expected one and checks
// the expiry. expires "0" marks a permanent link.
func (s *Signer) Validate(fileID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || exp < 0 {
		return false
	}
	if exp != 0 && time.Unix(exp, 0).Before(s.now()) {
		return false
	}
	expected := s.Sign(fileID, exp)
	// hmac.Equal performs constant-time comparison.
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Link is a signed download link.
type Link struct {
	URL     string `json:"url"`
	Expires int64  `json:"expires"`
}

// Link builds a download URL for fileID under baseURL. A ttl of zero yields a
// permanent link.
func (s *Signer) Link(baseURL, fileID string, ttl time.Duration) Link {
	var expiry int64
	if ttl > 0 {
		expiry = s.now().Add(ttl).Unix()
	}
	q := url.Values{}
	q.Set("file", fileID)
	q.Set("expires", strconv.FormatInt(expiry, 10))
	q.Set("signature", s.Sign(fileID, expiry))
	return Link{
		URL:     strings.TrimSuffix(baseURL, "/") + "/download?" + q.Encode(),
		Expires: expiry,
	}
}
