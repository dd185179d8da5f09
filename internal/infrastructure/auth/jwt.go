package auth

import (
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/erp/schoolfees/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

// Claims are the access-token claims issued by the identity service.
// user_id is the numeric staff id; sub is accepted as a fallback.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64    `json:"user_id"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// Principal is the authenticated caller. Handlers pass it explicitly into
// application services, which stamp approvedBy/receivedBy from UserID.
type Principal struct {
	UserID   int64
	Username string
	Roles    []string
	TokenID  string
	Token    string
}

// HasRole reports whether the principal carries role
func (p *Principal) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

// UserIDPtr returns the user id as a pointer, nil for an anonymous principal
func (p *Principal) UserIDPtr() *int64 {
	if p == nil || p.UserID == 0 {
		return nil
	}
	id := p.UserID
	return &id
}

// Validator verifies HS256 access tokens
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator creates a validator from the JWT config
func NewValidator(cfg config.JWTConfig) *Validator {
	return &Validator{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

// Validate parses and verifies tokenString and returns its principal
func (v *Validator) Validate(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	userID := claims.UserID
	if userID == 0 && claims.Subject != "" {
		if id, err := strconv.ParseInt(claims.Subject, 10, 64); err == nil {
			userID = id
		}
	}
	if userID <= 0 {
		return nil, ErrMissingUserID
	}

	return &Principal{
		UserID:   userID,
		Username: claims.Username,
		Roles:    claims.Roles,
		TokenID:  claims.ID,
		Token:    tokenString,
	}, nil
}

// ExpiresIn returns the remaining lifetime of a token, 0 when unknown or past.
// Used as the TTL of a revocation entry.
func ExpiresIn(tokenString string) time.Duration {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil || claims.ExpiresAt == nil {
		return 0
	}
	return max(time.Until(claims.ExpiresAt.Time), 0)
}

// TokenIssuer signs access tokens. Tokens are normally issued by the identity
// service; this is used by tests and local tooling.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer sharing the validator's secret and issuer
func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	ttl := cfg.AccessTokenExpiration
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenIssuer{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: ttl}
}

// Issue signs a token for userID
func (i *TokenIssuer) Issue(userID int64, username string, roles ...string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(i.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:   userID,
		Username: username,
		Roles:    roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
