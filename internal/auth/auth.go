// Package auth verifies credentials against the user store and issues and
// restores stateless session tokens (HS256 JWTs carrying the user id).
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/taskboard/app/internal/config"
	"github.com/taskboard/app/internal/database"
	"github.com/taskboard/app/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is the single answer for an unknown email and a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired session token")
	ErrWeakSecret         = config.ErrWeakSecret
)

const issuer = "taskboard"

// Claims is the JWT payload.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Session is what a valid token restores, without a store round trip.
type Session struct {
	UserID    int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	db     *sql.DB
	secret []byte
	ttl    time.Duration
	logger logrus.FieldLogger
	now    func() time.Time
}

// New returns a Service signing with secret. The secret must pass
// config.ValidateSecret; there is no built-in fallback.
func New(db *sql.DB, secret string, ttl time.Duration, logger logrus.FieldLogger) (*Service, error) {
	if err := config.ValidateSecret(secret); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive, got %v", ttl)
	}
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Service{
		db:     db,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.WithField("component", "auth"),
		now:    time.Now,
	}, nil
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) TTL() time.Duration { return s.ttl }

// Authenticate checks email and password against the credential store.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := database.GetUserByEmail(ctx, s.db, email)
	if errors.Is(err, sql.ErrNoRows) {
		// Burn roughly the same time as a real comparison so response
		// timing does not reveal whether the email exists.
		database.VerifyPassword(&models.User{PasswordHash: dummyHash()}, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	}

	if !database.VerifyPassword(user, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken mints a signed token for user.
func (s *Service) IssueToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ParseToken validates a token and returns the session it carries.
func (s *Service) ParseToken(tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return &Session{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// SignIn authenticates and issues a token in one step.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, string, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.Info("sign-in rejected")
		} else {
			s.logger.WithError(err).Error("sign-in failed")
		}
		return nil, "", err
	}

	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	s.logger.WithField("user_id", user.ID).Info("sign-in succeeded")
	return &Session{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		ExpiresAt: expiresAt,
	}, token, nil
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie. It returns "" when neither is present.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

type contextKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SessionFromContext returns the session put there by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

var (
	dummyOnce sync.Once
	dummy     string
)

// dummyHash is a bcrypt hash at the store's cost that no password matches.
func dummyHash() string {
	dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), database.PasswordCost)
		if err == nil {
			dummy = string(h)
		}
	})
	return dummy
}
