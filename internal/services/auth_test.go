package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adibqt/LibroTrack/internal/models"
)

func generateKeyPEMs(t *testing.T) (privatePEM, publicPEM string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}))
	return privatePEM, publicPEM
}

func newTestAuthService(t *testing.T, privatePEM, publicPEM string, redisClient *redis.Client) *AuthService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	s, err := NewAuthService(privatePEM, publicPEM, time.Hour, logger, redisClient)
	require.NoError(t, err)
	return s
}

func TestNewAuthService(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	tests := []struct {
		name       string
		privateKey string
		publicKey  string
		wantErr    bool
	}{
		{name: "private key only", privateKey: privatePEM},
		{name: "public key only", publicKey: publicPEM},
		{name: "both keys", privateKey: privatePEM, publicKey: publicPEM},
		{name: "no keys", wantErr: true},
		{name: "garbage private key", privateKey: "not a key", wantErr: true},
		{name: "garbage public key", publicKey: "-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewAuthService(tt.privateKey, tt.publicKey, time.Hour, logger, nil)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, s)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestAuthService_GenerateAndValidateToken(t *testing.T) {
	privatePEM, _ := generateKeyPEMs(t)
	s := newTestAuthService(t, privatePEM, "", nil)

	identity := models.Identity{UserID: 42, Username: "reader", Role: models.RoleLibrarian}
	token, err := s.GenerateToken(identity)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := s.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, identity, claims.Identity())
	assert.Equal(t, "user_42", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestAuthService_VerifyOnly(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)
	signer := newTestAuthService(t, privatePEM, "", nil)
	verifier := newTestAuthService(t, "", publicPEM, nil)

	token, err := signer.GenerateToken(models.Identity{UserID: 7, Role: models.RoleMember})
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)

	_, err = verifier.GenerateToken(models.Identity{UserID: 7})
	assert.ErrorIs(t, err, ErrSigningKeyless)
}

func TestAuthService_ValidateToken_Rejects(t *testing.T) {
	privatePEM, _ := generateKeyPEMs(t)
	otherPEM, _ := generateKeyPEMs(t)
	s := newTestAuthService(t, privatePEM, "", nil)
	other := newTestAuthService(t, otherPEM, "", nil)

	foreign, err := other.GenerateToken(models.Identity{UserID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)

	hmacToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: 1,
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	expiredSigner, err := NewAuthService(privatePEM, "", -time.Minute, slog.Default(), nil)
	require.NoError(t, err)
	expired, err := expiredSigner.GenerateToken(models.Identity{UserID: 1, Role: models.RoleMember})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "signed by another key", token: foreign},
		{name: "hmac signed", token: hmacToken},
		{name: "expired", token: expired},
		{name: "malformed", token: "not.a.token"},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := s.ValidateToken(context.Background(), tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestAuthService_BlacklistWithoutRedis(t *testing.T) {
	privatePEM, _ := generateKeyPEMs(t)
	s := newTestAuthService(t, privatePEM, "", nil)

	token, err := s.GenerateToken(models.Identity{UserID: 1, Role: models.RoleMember})
	require.NoError(t, err)

	assert.Error(t, s.BlacklistToken(context.Background(), token))
}

func TestAuthService_BlacklistToken(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis test in short mode")
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	privatePEM, _ := generateKeyPEMs(t)
	s := newTestAuthService(t, privatePEM, "", client)

	token, err := s.GenerateToken(models.Identity{UserID: 5, Role: models.RoleMember})
	require.NoError(t, err)
	defer client.Del(ctx, blacklistKey(token))

	_, err = s.ValidateToken(ctx, token)
	require.NoError(t, err)

	require.NoError(t, s.BlacklistToken(ctx, token))

	_, err = s.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	ttl, err := client.TTL(ctx, blacklistKey(token)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute)
}
