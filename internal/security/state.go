package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidState = errors.New("invalid oauth state")

func NewState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SignState binds state to an expiry and signs both with key. The result is
// cookie-safe.
func SignState(state string, expiresAt time.Time, key []byte) string {
	payload := state + "." + strconv.FormatInt(expiresAt.Unix(), 10)
	return payload + "." + stateMAC(payload, key)
}

// VerifyState checks the signed cookie value against the state echoed back by
// the provider.
func VerifyState(signed, state string, now time.Time, key []byte) error {
	parts := strings.Split(signed, ".")
	if len(parts) != 3 || state == "" || parts[0] == "" {
		return ErrInvalidState
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(stateMAC(payload, key))) {
		return ErrInvalidState
	}
	if !hmac.Equal([]byte(parts[0]), []byte(state)) {
		return ErrInvalidState
	}
	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || now.Unix() > exp {
		return ErrInvalidState
	}
	return nil
}

func stateMAC(payload string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
