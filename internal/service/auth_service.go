package service

import (
	"context"
	"errors"
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/dto"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	CreateUser(ctx context.Context, in NewUser) (*model.User, error)
}

// NewUser is the input of CreateUser; used by the seed and admin CLIs.
type NewUser struct {
	Username       string
	FullName       string
	Email          *string
	Password       string
	Role           string
	CommissionRate *decimal.Decimal
}

type authService struct {
	repo repository.UserRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.UserRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   s.cfg.JWTExpirationHours * 3600,
		User:        UserToResponse(user),
	}, nil
}

func (s *authService) CreateUser(ctx context.Context, in NewUser) (*model.User, error) {
	switch in.Role {
	case model.RoleCollector, model.RoleSupervisor, model.RoleAdmin:
	default:
		return nil, ErrInvalidInput.WithMessage("role must be collector, supervisor or admin")
	}
	if len(in.Password) < 8 {
		return nil, ErrInvalidInput.WithMessage("password must be at least 8 characters")
	}
	if in.CommissionRate != nil {
		if err := checkCents("commission_rate", *in.CommissionRate); err != nil {
			return nil, err
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:       in.Username,
		FullName:       in.FullName,
		Email:          in.Email,
		PasswordHash:   string(hash),
		Role:           in.Role,
		CommissionRate: in.CommissionRate,
		Active:         true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrInvalidInput.WithMessage("username already taken")
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) generateToken(user *model.User, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(duration).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// UserToResponse maps a user onto its API shape.
func UserToResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		FullName: u.FullName,
		Email:    u.Email,
		Role:     u.Role,
		Active:   u.Active,
	}
}
