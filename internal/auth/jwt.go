package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/ammar1510/alumni-chat/internal/logger"
	"github.com/ammar1510/alumni-chat/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingToken = errors.New("missing token")

	// Tokens are issued by the account service with the shared secret.
	// InitJWTKey replaces the key once config is loaded.
	jwtKey = []byte(os.Getenv("JWT_SECRET"))
	log    = logger.New("auth")
)

// InitJWTKey sets the HMAC secret used to verify and sign tokens.
func InitJWTKey(key []byte) {
	jwtKey = key
}

// JWTClaims is the identity carried by an access token.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

// GenerateToken signs a token for user. Production tokens come from the
// account service; this is used by tests and local tooling.
func GenerateToken(user *models.User, ttl time.Duration) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, errors.New("user cannot be nil")
	}
	if user.ID == uuid.Nil {
		return "", time.Time{}, errors.New("user ID cannot be empty")
	}

	now := time.Now()
	expirationTime := now.Add(ttl)
	claims := &JWTClaims{
		UserID: user.ID.String(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtKey)
	return tokenString, expirationTime, err
}

// ValidateToken checks the signature and expiry of tokenString.
func ValidateToken(tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtKey, nil
	})
	if err != nil {
		log.Debug("token rejected: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate validates tokenString and resolves the caller's id.
func Authenticate(tokenString string) (*Identity, error) {
	claims, err := ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user id", ErrInvalidToken)
	}
	return &Identity{UserID: userID, Role: claims.Role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
