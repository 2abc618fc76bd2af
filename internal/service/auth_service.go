package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bpmn-backend/internal/model"
	"bpmn-backend/internal/storage"
	"bpmn-backend/internal/utils"
	"bpmn-backend/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	storage storage.Storage
	jwt     *utils.JWTManager
	cost    int
}

func NewAuthService(store storage.Storage, jwt *utils.JWTManager) *AuthService {
	return &AuthService{storage: store, jwt: jwt, cost: bcrypt.DefaultCost}
}

// WithCost 测试中降低 bcrypt 代价
func (s *AuthService) WithCost(cost int) *AuthService {
	s.cost = cost
	return s
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, storage.ErrInvalidData
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username:       username,
		Email:          req.Email,
		FullName:       req.FullName,
		HashedPassword: string(hash),
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	logger.Infof("User registered: %s (id=%d)", user.Username, user.ID)
	return user, nil
}

// Authenticate 校验用户名密码并签发访问令牌
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.Username)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// CurrentUser 按令牌找到用户；令牌无效或用户不存在都返回 utils.ErrInvalidToken
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	username, err := s.jwt.ParseToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, utils.ErrInvalidToken
		}
		return nil, err
	}
	if user.Disabled {
		return nil, ErrInactiveUser
	}
	return user, nil
}
