package auth

import (
	"context"
	"errors"
	"time"

	"backend-triptracker/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour

	kindAccess  = "access"
	kindRefresh = "refresh"
)

var (
	ErrInvalidDeviceKey = errors.New("invalid device credentials")
	ErrTokenInvalid     = errors.New("token invalid")
)

var (
	signTokenFn       = (*Service).signToken
	hashPasswordFn    = bcrypt.GenerateFromPassword
	parseWithClaimsFn = jwt.ParseWithClaims
)

// Service pairs devices holding the shared device key and issues JWTs for them.
type Service struct {
	secret  []byte
	keyHash []byte
	db      db.Querier
}

type Claims struct {
	DeviceID string `json:"device_id"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

func NewService(secret, deviceKey string, q db.Querier) (*Service, error) {
	hash, err := hashPasswordFn([]byte(deviceKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Service{
		secret:  []byte(secret),
		keyHash: hash,
		db:      q,
	}, nil
}

// IssueTokens checks the device key and returns a fresh token pair.
func (s *Service) IssueTokens(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	if req.DeviceID == "" || req.DeviceKey == "" {
		return TokenResponse{}, errors.New("device_id and device_key required")
	}
	if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(req.DeviceKey)); err != nil {
		return TokenResponse{}, ErrInvalidDeviceKey
	}
	return s.GenerateTokens(ctx, req.DeviceID)
}

func (s *Service) GenerateTokens(ctx context.Context, deviceID string) (TokenResponse, error) {
	access, err := signTokenFn(s, deviceID, kindAccess, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, deviceID, kindRefresh, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, deviceID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token, kindRefresh)
	if err != nil {
		return "", err
	}

	deviceID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || deviceID != claims.DeviceID || time.Now().After(expiresAt) {
		return "", errors.New("refresh token invalid")
	}
	return claims.DeviceID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token, kindAccess)
	if err != nil {
		return "", err
	}
	return claims.DeviceID, nil
}

func (s *Service) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	return err
}

func (s *Service) signToken(deviceID, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		DeviceID: deviceID,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   deviceID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token, kind string) (*Claims, error) {
	return parseClaims(token, s.secret, kind)
}

func parseClaims(token string, secret []byte, kind string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Kind != kind || claims.DeviceID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, deviceID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, device_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), deviceID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT device_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var deviceID string
	var expiresAt time.Time
	if err := row.Scan(&deviceID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return deviceID, expiresAt, nil
}
