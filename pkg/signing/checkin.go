package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid check-in token")
	// ErrExpiredToken is returned once the embedded expiry has passed.
	ErrExpiredToken = errors.New("check-in token expired")
)

// CheckInClaims are the values carried by a QR check-in token.
type CheckInClaims struct {
	EventID   string
	UserID    string
	ExpiresAt time.Time
}

// CheckInSigner issues and verifies HMAC-SHA256 signed check-in tokens.
// Token layout: base64(event_id).base64(user_id).expiry_unix.hex(signature).
type CheckInSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCheckInSigner constructs a signer with the provided secret and TTL.
func NewCheckInSigner(secret string, ttl time.Duration) *CheckInSigner {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &CheckInSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token binding the user to the event until the TTL elapses.
func (s *CheckInSigner) Issue(eventID, userID string) (string, time.Time, error) {
	if eventID == "" || userID == "" {
		return "", time.Time{}, fmt.Errorf("eventID and userID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	parts := []string{
		base64.RawURLEncoding.EncodeToString([]byte(eventID)),
		base64.RawURLEncoding.EncodeToString([]byte(userID)),
		strconv.FormatInt(expiresAt.Unix(), 10),
	}
	parts = append(parts, s.sign(parts))
	return strings.Join(parts, "."), expiresAt, nil
}

// Verify checks the signature and expiry and returns the embedded claims.
func (s *CheckInSigner) Verify(token string) (CheckInClaims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 4 {
		return CheckInClaims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.sign(parts[:3])), []byte(parts[3])) {
		return CheckInClaims{}, ErrInvalidToken
	}

	eventID, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return CheckInClaims{}, ErrInvalidToken
	}
	userID, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return CheckInClaims{}, ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return CheckInClaims{}, ErrInvalidToken
	}

	claims := CheckInClaims{EventID: string(eventID), UserID: string(userID), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(claims.ExpiresAt) {
		return claims, ErrExpiredToken
	}
	return claims, nil
}

func (s *CheckInSigner) sign(parts []string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}
