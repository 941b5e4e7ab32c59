package adminauth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("admin auth is unavailable")
)

// Claims identifies an operator calling the ops API.
type Claims struct {
	Subject string
	Role    string
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	secret     []byte
	tokenTTL   time.Duration
	configured bool
	now        func() time.Time
}

func NewService(jwtSecret string, tokenTTL time.Duration) *Service {
	secret := strings.TrimSpace(jwtSecret)
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &Service{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		configured: secret != "",
		now:        time.Now,
	}
}

func (s *Service) IsConfigured() bool {
	return s != nil && s.configured
}

// IssueToken mints an HS256 access token for the given operator. Tokens
// are handed out by deployment tooling, not by the API itself.
func (s *Service) IssueToken(subject, role string) (string, error) {
	if !s.IsConfigured() {
		return "", ErrUnavailable
	}
	if strings.TrimSpace(subject) == "" {
		return "", ErrUnauthorized
	}

	now := s.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role: strings.TrimSpace(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(subject),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(accessToken string) (Claims, error) {
	if !s.IsConfigured() {
		return Claims{}, ErrUnavailable
	}

	token, err := jwt.ParseWithClaims(accessToken, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrUnauthorized
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return Claims{}, ErrUnauthorized
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrUnauthorized
	}
	if strings.TrimSpace(tc.Subject) == "" {
		return Claims{}, ErrUnauthorized
	}

	return Claims{
		Subject: strings.TrimSpace(tc.Subject),
		Role:    strings.TrimSpace(tc.Role),
	}, nil
}
