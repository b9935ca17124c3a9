package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"
)

// Well-known nonce actions.
const (
	NonceActionRegister = "register"
	NonceActionLogin    = "login"
	NonceActionSettings = "update_settings"
)

const noncePrefix = "nonce:"

// NonceManager issues and verifies single-purpose tokens bound to a
// session and an action name.
type NonceManager struct {
	secret []byte
}

// NewNonceManager returns a NonceManager using the provided secret key.
func NewNonceManager(secret string) *NonceManager {
	return &NonceManager{secret: []byte(secret)}
}

// Issue retrieves or generates the nonce for the session and action.
func (m *NonceManager) Issue(ctx context.Context, sess *Session, action string) (string, error) {
	if sess == nil {
		return "", ErrNonceMissing
	}
	key := noncePrefix + action
	if token := sess.Get(key); token != "" {
		return token, nil
	}
	token := m.generateToken(sess.ID, action)
	sess.Set(key, token)
	return token, nil
}

// Verify compares the supplied token with the session token for action.
func (m *NonceManager) Verify(ctx context.Context, sess *Session, action, token string) error {
	if sess == nil {
		return ErrNonceMissing
	}
	expected := sess.Get(noncePrefix + action)
	if expected == "" || token == "" {
		return ErrNonceMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrNonceMismatch
	}
	return nil
}

func (m *NonceManager) generateToken(sessionID, action string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(sessionID))
	_, _ = mac.Write([]byte{'|'})
	_, _ = mac.Write([]byte(action))
	_, _ = mac.Write([]byte{'|'})
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(time.Now().UnixNano()))
	_, _ = mac.Write(buf)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
