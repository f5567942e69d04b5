// File: internal/infra/security/signer.go
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Signer produces and checks HMAC-SHA256 signatures for expiring resource
// URLs. Receipts are the only consumer today; the payload format is
// "<path>:<unix expiry>".
type Signer struct {
	key []byte
}

func NewSigner(key string) (*Signer, error) {
	if len(key) < 16 {
		return nil, errors.New("signing key must be at least 16 bytes")
	}
	return &Signer{key: []byte(key)}, nil
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SignPath returns (expiry, signature) for a resource path valid for ttl.
func (s *Signer) SignPath(path string, ttl time.Duration) (int64, string) {
	exp := time.Now().Add(ttl).Unix()
	return exp, s.sign(payload(path, exp))
}

// VerifyPath checks the signature and that the expiry has not passed.
func (s *Signer) VerifyPath(path string, exp int64, sig string) bool {
	if time.Now().Unix() > exp {
		return false
	}
	want := s.sign(payload(path, exp))
	return hmac.Equal([]byte(want), []byte(sig))
}

func payload(path string, exp int64) string {
	return fmt.Sprintf("%s:%s", path, strconv.FormatInt(exp, 10))
}
