package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloudbucket/internal/config"
	"cloudbucket/internal/namespace"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxPasswordLength = 72 // bcrypt limit

// userStore abstracts the persistence layer.
type userStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (User, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)
}

// Service encapsulates authentication use cases.
type Service struct {
	store   userStore
	cfg     config.AuthConfig
	nowFunc func() time.Time
	issuer  string
	parser  *jwt.Parser
}

// NewService creates a Service with dependencies.
func NewService(store userStore, cfg config.AuthConfig) *Service {
	return &Service{
		store:   store,
		cfg:     cfg,
		nowFunc: time.Now,
		issuer:  "cloudbucket",
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})),
	}
}

// SignupInput carries data for user registration.
type SignupInput struct {
	Username string
	Password string
}

// LoginInput carries login credentials.
type LoginInput struct {
	Username string
	Password string
}

// LoginResult contains the authenticated user and their bearer token.
type LoginResult struct {
	User      User
	Token     string
	ExpiresAt time.Time
}

// Signup creates a new user with a hashed password. Usernames double as
// container-name prefixes, so the namespace rules apply at signup time.
func (s *Service) Signup(ctx context.Context, input SignupInput) (User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if err := namespace.ValidateUsername(username); err != nil {
		return User{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return User{}, err
	}

	hashedPassword, err := hashPassword(input.Password, s.cfg.BcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, hashedPassword)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	return user.SafeUser(), nil
}

// Login authenticates credentials and issues a bearer token. A missing user
// and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" || input.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.generateToken(user, s.nowFunc())
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate token: %w", err)
	}

	return LoginResult{
		User:      user.SafeUser(),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// ResolvePrincipal verifies the token signature and extracts the principal.
func (s *Service) ResolvePrincipal(tokenString string) (Principal, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Principal{}, ErrUnauthorized
	}

	parsed, err := s.parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.TokenSecret), nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, ErrUnauthorized
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrUnauthorized
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Principal{}, ErrUnauthorized
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}

	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return Principal{}, ErrUnauthorized
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return Principal{}, ErrUnauthorized
	}
	if time.Unix(int64(expFloat), 0).Before(s.nowFunc()) {
		return Principal{}, ErrUnauthorized
	}

	return Principal{ID: userID, Username: username}, nil
}

func (s *Service) generateToken(user User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"iss":      s.issuer,
		"iat":      now.Unix(),
		"exp":      expiresAt.Unix(),
		"username": user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.TokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func hashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func validatePassword(password string) error {
	if len(password) < 8 || len(password) > maxPasswordLength {
		return ErrInvalidCredentials
	}
	return nil
}
