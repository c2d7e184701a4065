package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"gigmarket/internal/model"
	"gigmarket/internal/service/engagement"
	"gigmarket/pkg/rbac"
	"gigmarket/pkg/util"
)

const minPasswordLength = 8

// UserStore is the persistence the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type Service struct {
	users     UserStore
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewService(users UserStore, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

var errBadCredentials = &engagement.Error{
	Kind:    engagement.KindAuthentication,
	Message: "invalid email or password",
}

func invalid(msg string) error {
	return &engagement.Error{Kind: engagement.KindValidation, Message: msg}
}

// Register creates a client or contributor account. Admins are provisioned
// out of band.
func (s *Service) Register(ctx context.Context, email, password, role string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, invalid("password must be at least 8 characters")
	}
	if role != rbac.RoleClient && role != rbac.RoleContributor {
		return nil, invalid("role must be client or contributor")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, &engagement.Error{Kind: engagement.KindInternal, Message: "internal error", Err: err}
	}

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, engagement.ErrDuplicateRecord) {
			return nil, &engagement.Error{Kind: engagement.KindConflict, Message: "email already exists"}
		}
		s.logger.Error("Failed to register user", zap.String("email", email), zap.Error(err))
		return nil, &engagement.Error{Kind: engagement.KindInternal, Message: "internal error", Err: err}
	}

	s.logger.Info("User registered", zap.Int64("user_id", u.ID), zap.String("role", role))
	return u, nil
}

// Login checks user credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if !errors.Is(err, engagement.ErrNoRecord) {
			s.logger.Error("Failed to load user", zap.Error(err))
			return "", nil, &engagement.Error{Kind: engagement.KindInternal, Message: "internal error", Err: err}
		}
		return "", nil, errBadCredentials
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return "", nil, errBadCredentials
	}

	token, err := util.GenerateJWT(u.ID, u.Role, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return "", nil, &engagement.Error{Kind: engagement.KindInternal, Message: "internal error", Err: err}
	}
	return token, u, nil
}
