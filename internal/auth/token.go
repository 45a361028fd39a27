// Package auth verifies the access tokens issued by the account service.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no authentication token provided")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the caller a valid token vouches for.
type Identity struct {
	UserID   string
	Username string
	IsAdmin  bool
}

// TokenService signs and validates HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret []byte) *TokenService {
	return &TokenService{secret: secret, ttl: 24 * time.Hour}
}

// GenerateToken signs a token for the identity. Used by tooling and tests;
// production tokens come from the account service with the same claims.
func (s *TokenService) GenerateToken(id Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  id.UserID,
		"username": id.Username,
		"is_admin": id.IsAdmin,
		"exp":      now.Add(s.ttl).Unix(),
		"iat":      now.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ValidateToken parses the token and returns the identity it carries.
func (s *TokenService) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	username, _ := claims["username"].(string)
	isAdmin, _ := claims["is_admin"].(bool)

	return &Identity{UserID: userID, Username: username, IsAdmin: isAdmin}, nil
}

// TokenFromRequest returns the token from the Authorization header or, for
// browser websocket clients that cannot set headers, the token query param.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer "), nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrNoToken
}
