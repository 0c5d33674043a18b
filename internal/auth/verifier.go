package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential and ErrInvalidCredential are kept distinct for
	// diagnostics only. Callers must collapse both into a single
	// unauthorized response so the client cannot probe token validity.
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

// Identity is the authenticated representation of a connecting user,
// resolved once per connection attempt and immutable afterwards.
type Identity struct {
	UserID string
	Role   string
}

// Verifier resolves an opaque bearer credential to an Identity.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// JWTVerifier validates HMAC-signed tokens issued by the platform's auth
// service. It holds no state beyond the shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, credential string) (Identity, error) {
	if strings.TrimSpace(credential) == "" {
		return Identity{}, ErrMissingCredential
	}

	// Clients sometimes pass the full Authorization value.
	credential = strings.TrimPrefix(credential, "Bearer ")

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidCredential
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidCredential
	}

	userID := userIDFromClaims(claims)
	if userID == "" {
		return Identity{}, ErrInvalidCredential
	}

	role, _ := claims["role"].(string)

	return Identity{UserID: userID, Role: role}, nil
}

// userIDFromClaims accepts both string and numeric user_id claims; older
// tokens carry the numeric form.
func userIDFromClaims(claims jwt.MapClaims) string {
	switch id := claims["user_id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatUint(uint64(id), 10)
	default:
		return ""
	}
}
