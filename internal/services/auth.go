package services

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/adibqt/LibroTrack/internal/models"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidRSAKey  = errors.New("invalid RSA key")
	ErrSigningKeyless = errors.New("no private key configured for signing")
)

// AuthService verifies the RS256 bearer tokens issued by the identity
// service. With a private key it can also mint tokens for operators.
type AuthService struct {
	privateKey  *rsa.PrivateKey
	publicKey   *rsa.PublicKey
	tokenExpiry time.Duration
	logger      *slog.Logger
	redisClient *redis.Client
}

// NewAuthService needs at least one of the two PEM keys. The public key is
// derived from the private key when only the latter is given.
func NewAuthService(privateKeyPEM, publicKeyPEM string, tokenExpiry time.Duration, logger *slog.Logger, redisClient *redis.Client) (*AuthService, error) {
	s := &AuthService{
		tokenExpiry: tokenExpiry,
		logger:      logger,
		redisClient: redisClient,
	}

	if privateKeyPEM != "" {
		key, err := parseRSAPrivateKey(privateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JWT private key: %w", err)
		}
		s.privateKey = key
		s.publicKey = &key.PublicKey
	}
	if publicKeyPEM != "" {
		key, err := parseRSAPublicKey(publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JWT public key: %w", err)
		}
		s.publicKey = key
	}
	if s.publicKey == nil {
		return nil, fmt.Errorf("%w: a private or public key is required", ErrInvalidRSAKey)
	}
	return s, nil
}

func parseRSAPrivateKey(privateKeyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, ErrInvalidRSAKey
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS8 format
		parsedKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if rsaKey, ok := parsedKey.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, ErrInvalidRSAKey
	}

	return privateKey, nil
}

func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, ErrInvalidRSAKey
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	if rsaKey, ok := parsed.(*rsa.PublicKey); ok {
		return rsaKey, nil
	}
	return nil, ErrInvalidRSAKey
}

// GenerateToken signs an access token for identity
func (s *AuthService) GenerateToken(identity models.Identity) (string, error) {
	if s.privateKey == nil {
		return "", ErrSigningKeyless
	}

	now := time.Now()
	claims := &models.JWTClaims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("user_%d", identity.UserID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}

func (s *AuthService) parse(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken verifies the signature and expiry of a token and rejects
// tokens that were blacklisted.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		blacklisted, err := s.redisClient.Exists(ctx, blacklistKey(tokenString)).Result()
		if err != nil {
			s.logger.Error("Failed to check token blacklist", "error", err)
			// Continue validation if Redis is down
		}
		if blacklisted > 0 {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// BlacklistToken revokes a token until it would have expired anyway
func (s *AuthService) BlacklistToken(ctx context.Context, tokenString string) error {
	if s.redisClient == nil {
		return errors.New("redis client not configured")
	}

	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}

	expiry := time.Until(claims.ExpiresAt.Time)
	if expiry <= 0 {
		// Token already expired, no need to blacklist
		return nil
	}

	if err := s.redisClient.Set(ctx, blacklistKey(tokenString), "1", expiry).Err(); err != nil {
		s.logger.Error("Failed to blacklist token", "error", err)
		return err
	}

	s.logger.Info("Token blacklisted successfully", "user_id", claims.UserID)
	return nil
}

func blacklistKey(tokenString string) string {
	return fmt.Sprintf("blacklist:%s", tokenString)
}
