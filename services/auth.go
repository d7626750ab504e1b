package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	magicLinkTTL = 15 * time.Minute
	sessionTTL   = 7 * 24 * time.Hour
)

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type AuthConfig struct {
	JWTSecret string     `yaml:"jwt_secret"`
	SMTP      SMTPConfig `yaml:"smtp"`
}

// Claims identifies the user behind a session token.
type Claims struct {
	UserID string
	Email  string
}

type magicToken struct {
	email   string
	expires time.Time
}

type AuthService struct {
	mu         sync.Mutex
	tokens     map[string]magicToken
	jwtSecret  []byte
	smtpConfig SMTPConfig
	now        func() time.Time
}

func NewAuthService(cfg AuthConfig) *AuthService {
	secret := cfg.JWTSecret
	if secret == "" {
		log.Printf("Warning: JWT_SECRET not set, using an insecure default")
		secret = "your-default-secret-key-change-in-production"
	}

	return &AuthService{
		tokens:     make(map[string]magicToken),
		jwtSecret:  []byte(secret),
		smtpConfig: cfg.SMTP,
		now:        time.Now,
	}
}

// GenerateMagicLink creates a one-time token and emails the login link
func (s *AuthService) GenerateMagicLink(email string, baseURL string) (string, error) {
	token, err := s.generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.mu.Lock()
	s.pruneLocked()
	s.tokens[token] = magicToken{email: email, expires: s.now().Add(magicLinkTTL)}
	s.mu.Unlock()

	magicLink := fmt.Sprintf("%s/api/auth/magic-link?token=%s", baseURL, url.QueryEscape(token))

	if s.smtpConfig.Host != "" {
		if err := s.sendMagicLinkEmail(email, magicLink); err != nil {
			log.Printf("Warning: Failed to send email: %v", err)
		}
	}

	// For development, return the magic link directly
	return magicLink, nil
}

// VerifyMagicLinkToken consumes a one-time token and returns its email
func (s *AuthService) VerifyMagicLinkToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tokens[token]
	if !exists || s.now().After(t.expires) {
		delete(s.tokens, token)
		return "", errors.New("invalid or expired token")
	}
	delete(s.tokens, token)
	return t.email, nil
}

func (s *AuthService) pruneLocked() {
	now := s.now()
	for token, t := range s.tokens {
		if now.After(t.expires) {
			delete(s.tokens, token)
		}
	}
}

// CreateJWT signs a session token for the user
func (s *AuthService) CreateJWT(userID, email string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(sessionTTL).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyJWT checks a session token and returns its claims
func (s *AuthService) VerifyJWT(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, errors.New("subject claim missing")
	}
	email, _ := claims["email"].(string)
	return Claims{UserID: sub, Email: email}, nil
}

func (s *AuthService) generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (s *AuthService) sendMagicLinkEmail(to, magicLink string) error {
	subject := "Your login link for Collab Board"
	body := fmt.Sprintf("Click the link below to log in to Collab Board:\n\n%s\n\nThe link expires in 15 minutes. If you didn't request it, you can safely ignore this email.", magicLink)
	return sendMail(s.smtpConfig, to, subject, body)
}
