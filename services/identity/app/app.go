package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetingminutes/internal/usertoken"
	"meetingminutes/pkg/auth"
	"meetingminutes/pkg/domain"
	"meetingminutes/pkg/store"
)

// Config holds runtime configuration for the identity application.
type Config struct {
	DatabaseURL string
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration
	Store       store.Store
	Tokens      *usertoken.Authority
}

// App wires storage and credential logic for the identity service.
type App struct {
	store  store.Store
	tokens *usertoken.Authority
}

// New constructs the application with database storage and a token authority.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		var err error
		tokens, err = usertoken.NewAuthority(usertoken.Config{
			Secret: cfg.TokenSecret,
			Issuer: cfg.TokenIssuer,
			TTL:    cfg.TokenTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init token authority: %w", err)
		}
	}

	return &App{store: dataStore, tokens: tokens}, nil
}

// Register creates a new user account and returns its id.
func (a *App) Register(email, password, name string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", ErrEmailAndPasswordRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	if err := auth.ValidatePassword(password); err != nil {
		return "", err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return "", ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		// The unique index decides races the HasUserEmail check missed.
		if errors.Is(err, store.ErrDuplicateEmail) {
			return "", ErrEmailAlreadyExists
		}
		return "", fmt.Errorf("save user: %w", err)
	}
	slog.Info("security_event", "event", "user_registered", "userId", user.ID)
	return user.ID, nil
}

// Authenticate validates credentials and issues a bearer token. Unknown
// email and wrong password both map to ErrInvalidCredentials.
func (a *App) Authenticate(email, password string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		slog.Warn("security_event", "event", "login_failed", "reason", "unknown_email")
		return "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		slog.Warn("security_event", "event", "login_failed", "reason", "bad_password", "userId", user.ID)
		return "", ErrInvalidCredentials
	}
	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// UserFromToken validates a bearer token and loads the account it names.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	subject, err := a.tokens.Verify(token)
	if err != nil {
		return domain.User{}, false
	}
	user, ok, err := a.store.GetUserByID(subject)
	if err != nil || !ok {
		return domain.User{}, false
	}
	return user, true
}

// Ping reports whether the backing store is reachable.
func (a *App) Ping() error {
	return a.store.Ping()
}
