// Package auth issues and checks the bearer tokens handed out at login.
//
// A token is the encrypted claims followed by an HMAC of the ciphertext,
// both base64url encoded and joined with a dot.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gtank/cryptopasta"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWeakSecret   = errors.New("secret must be at least 32 characters")
)

const minSecretLength = 32

type claims struct {
	UserID    string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
}

type Signer struct {
	encKey *[32]byte
	macKey *[32]byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner derives separate encryption and signing keys from secret.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &Signer{
		encKey: deriveKey("expenso-token-enc", secret),
		macKey: deriveKey("expenso-token-mac", secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func deriveKey(tag, secret string) *[32]byte {
	key := &[32]byte{}
	copy(key[:], cryptopasta.Hash(tag, []byte(secret)))
	return key
}

// Issue returns a token for userID and the moment it stops being valid.
func (s *Signer) Issue(userID string) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errors.New("user id is required")
	}
	expiresAt := s.now().Add(s.ttl).UTC().Truncate(time.Second)
	payload, err := json.Marshal(claims{UserID: userID, ExpiresAt: expiresAt.Unix()})
	if err != nil {
		return "", time.Time{}, err
	}

	ciphertext, err := cryptopasta.Encrypt(payload, s.encKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encrypt token: %w", err)
	}
	signature := cryptopasta.GenerateHMAC(ciphertext, s.macKey)

	token := fmt.Sprintf("%s.%s",
		base64.RawURLEncoding.EncodeToString(ciphertext),
		base64.RawURLEncoding.EncodeToString(signature),
	)
	return token, expiresAt, nil
}

// Verify returns the user id carried by a valid, unexpired token.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", ErrInvalidToken
	}
	ciphertext, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidToken
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidToken
	}
	if !cryptopasta.CheckHMAC(ciphertext, signature, s.macKey) {
		return "", ErrInvalidToken
	}

	payload, err := cryptopasta.Decrypt(ciphertext, s.encKey)
	if err != nil {
		return "", ErrInvalidToken
	}
	var c claims
	if err := json.Unmarshal(payload, &c); err != nil || c.UserID == "" {
		return "", ErrInvalidToken
	}
	if !s.now().Before(time.Unix(c.ExpiresAt, 0)) {
		return "", ErrExpiredToken
	}
	return c.UserID, nil
}
