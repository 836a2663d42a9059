package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"videovault/internal/domain/user"
	"videovault/internal/pkg/logger"
)

type jwtService interface {
	GenerateToken(userID int64, role string) (string, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// Service issues credentials. Self-registration may pick viewer or editor;
// admins are promoted through the admin API or the seed command.
type Service struct {
	users UserRepository
	jwt   jwtService
	cost  int
	log   *zap.Logger
}

func NewService(users UserRepository, jwt jwtService, log *zap.Logger) *Service {
	return &Service{users: users, jwt: jwt, cost: bcrypt.DefaultCost, log: logger.Component(log, "auth")}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	role := user.RoleEditor
	if req.Role != "" {
		r, err := user.ParseRole(req.Role)
		if err != nil {
			return nil, err
		}
		if r == user.RoleAdmin {
			return nil, ErrRoleNotAllowed
		}
		role = r
	}

	u, err := s.CreateUser(ctx, req.Username, req.Email, req.Password, role, req.Organization)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// CreateUser hashes the password and stores the user with the given role.
func (s *Service) CreateUser(ctx context.Context, username, email, password string, role user.Role, org string) (*user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	org = strings.TrimSpace(org)
	if org == "" {
		org = "default"
	}
	u := &user.User{
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		Role:         role,
		Organization: org,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrUserExists) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}
	s.log.Info("user created", zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *Service) Me(ctx context.Context, userID int64) (*user.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *Service) issue(u *user.User) (*AuthResponse, error) {
	token, err := s.jwt.GenerateToken(u.ID, string(u.Role))
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: u}, nil
}
