package auth

import (
	"chat-broker/domain"
	"chat-broker/errors"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultIssuer = "chat-broker"

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens issued by the account service.
// It has no side effects and is safe for concurrent use.
type Verifier struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret string, issuer string) *Verifier {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Verifier{key: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify returns ErrMissingToken for an absent token and ErrInvalidToken for anything
// malformed, expired, signed with another key or missing a user id.
func (v *Verifier) Verify(token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, errors.ErrMissingToken
	}

	parsed, err := jwt.ParseWithClaims(token, &CustomClaims{}, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %s", errors.ErrInvalidToken, reason(err))
	}

	claims, ok := parsed.Claims.(*CustomClaims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return domain.Identity{}, errors.ErrInvalidToken
	}
	return domain.Identity{UserID: claims.UserID, Roles: claims.Roles}, nil
}

// Issue creates a signed JWT for a specific user.
// Only tests and the development CLI issue tokens, the broker itself never does.
func (v *Verifier) Issue(userID string, roles []string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := &CustomClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

func reason(err error) string {
	switch {
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad signature"
	case stderrors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "bad issuer"
	default:
		return "rejected"
	}
}
