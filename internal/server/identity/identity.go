// Package identity adapts the external identity provider. The provider
// authenticates users out-of-band and hands the application a signed bearer
// token; this package verifies that token and extracts the stable subject
// and verified email.
package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the externally authenticated principal, independent of the
// application's own user record.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Verifier turns a bearer token into an Identity. Any failure means the
// caller is treated as not authenticated; callers must not surface verifier
// errors as a distinct class.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

var errInvalidIdentityToken = errors.New("invalid identity token")

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// JWTVerifier verifies HS256 tokens minted by the identity provider.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

func (v *JWTVerifier) Verify(tokenString string) (*Identity, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || c.Subject == "" || c.Email == "" {
		return nil, errInvalidIdentityToken
	}
	return &Identity{Subject: c.Subject, Email: c.Email, Name: c.Name}, nil
}

// MintToken signs an identity token. Used by the ops tool and tests; the
// real identity provider mints these in production.
func MintToken(id *Identity, secret []byte, opts ...func(*claims)) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.Subject},
		Email:            id.Email,
		Name:             id.Name,
	}
	for _, opt := range opts {
		opt(&c)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(secret)
}
