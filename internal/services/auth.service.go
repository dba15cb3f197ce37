package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	tokenIssuer      = "hostpulse"
	secretKeyFile    = ".hostpulse-secret-key"
	minSecretLength  = 32
	defaultTokenTTL  = 24 * time.Hour
	defaultUserAgent = "hostpulse-agent"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims are carried by websocket access tokens.
type TokenClaims struct {
	ClientName string `json:"client_name"`
	UserAgent  string `json:"user_agent"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens for the event stream.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer uses secret, or when it is empty a key persisted in the
// user's home directory, generating one on first use.
func NewTokenIssuer(secret string, ttl time.Duration, logger *zap.Logger) (*TokenIssuer, error) {
	log := logger.Named("auth")
	secret = strings.TrimSpace(secret)
	if secret == "" {
		var err error
		secret, err = loadOrCreateSecret(secretKeyPath(), log)
		if err != nil {
			return nil, err
		}
	}
	if len(secret) < minSecretLength {
		log.Warn("auth secret shorter than recommended", zap.Int("length", len(secret)), zap.Int("minimum", minSecretLength))
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func secretKeyPath() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, secretKeyFile)
	}
	return filepath.Join(os.TempDir(), secretKeyFile)
}

func loadOrCreateSecret(path string, log *zap.Logger) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			log.Info("loaded persisted secret key", zap.String("file", path))
			return key, nil
		}
	}

	raw := make([]byte, minSecretLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate secret key: %w", err)
	}
	key := hex.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(key), 0o600); err != nil {
		log.Warn("could not persist secret key", zap.String("file", path), zap.Error(err))
	} else {
		log.Info("generated and persisted secret key", zap.String("file", path))
	}
	return key, nil
}

// Generate issues a token for a named client.
func (t *TokenIssuer) Generate(clientName string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := TokenClaims{
		ClientName: clientName,
		UserAgent:  defaultUserAgent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses and verifies a token.
func (t *TokenIssuer) Validate(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
