package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JWTAuth mints a CONNECT username/password pair where the password is a
// signed JWT rather than a bare secret, the shape several managed brokers
// (AWS IoT Core, HiveMQ Enterprise, and similar) require of CONNECT auth.
type JWTAuth struct {
	KeyID      string
	SigningKey []byte
	TTL        time.Duration
}

// connectCredentials mints the (username, password) pair to place in
// CONNECT: username is the configured key ID, password is a compact,
// HS256-signed JWT with subject=clientID and an expiry TTL out from now.
func (a JWTAuth) connectCredentials(clientID string, now time.Time) (string, []byte, error) {
	claims := jwt.MapClaims{
		"sub": clientID,
		"iat": now.Unix(),
		"exp": now.Add(a.TTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.SigningKey)
	if err != nil {
		return "", nil, err
	}
	return a.KeyID, []byte(signed), nil
}
