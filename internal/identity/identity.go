// Package identity resolves which account owns the data being touched. An
// identity is either the normalized email of the signed-in account or the
// reserved guest key, and maps to a filesystem-safe per-identity directory.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"daydash/internal/domain"
)

const appDirName = "daydash"

// Resolver reports the currently signed-in account, or nil for guest use.
type Resolver func() *domain.UserProfile

// Key returns the identity key for a profile: the normalized email, or the
// guest key when nobody is signed in.
func Key(user *domain.UserProfile) string {
	if user == nil {
		return domain.GuestUserID
	}
	email := NormalizeEmail(user.Email)
	if email == "" {
		return domain.GuestUserID
	}
	return email
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SafeKey encodes an identity key so it can name a directory: ASCII
// letters, digits, dot, underscore and dash pass through, everything else
// becomes %xx.
func SafeKey(key string) string {
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '_', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02x", c)
		}
	}
	return b.String()
}

// DefaultDataRoot is the durable per-user data root, normally under the
// OS config directory.
func DefaultDataRoot() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

// UserDataDir returns the durable directory for one identity key under the
// given data root.
func UserDataDir(root, key string) string {
	return filepath.Join(root, "users", SafeKey(key))
}

// GuestDataDir returns the process-scoped ephemeral directory for guest
// data. It embeds the pid so parallel processes do not share guest state.
func GuestDataDir() string {
	return filepath.Join(os.TempDir(), appDirName, fmt.Sprintf("guest-%d", os.Getpid()))
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Name    string `json:"name,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// IssueSessionToken signs a local session token for a profile. The subject
// claim carries the normalized email.
func IssueSessionToken(secret string, user domain.UserProfile, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("session secret not configured")
	}
	email := NormalizeEmail(user.Email)
	if email == "" {
		return "", errors.New("email required")
	}
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:    user.Name,
		IconURL: user.IconURL,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken validates a session token and rebuilds the profile it
// carries.
func ParseSessionToken(secret, token string) (*domain.UserProfile, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &sessionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("subject claim required")
	}
	return &domain.UserProfile{
		Name:    claims.Name,
		Email:   claims.Subject,
		IconURL: claims.IconURL,
	}, nil
}
