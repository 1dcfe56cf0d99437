package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"bookvault/internal/apperr"
	"bookvault/internal/auth"
	"bookvault/internal/domain"
	"bookvault/internal/repository"
)

// UserStore — операции над пользователями, нужные сервису
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	RecordLogin(ctx context.Context, entry *domain.LoginHistory) error
	LoginHistory(ctx context.Context, userID int64, limit int) ([]domain.LoginHistory, error)
}

// UserService отвечает за регистрацию, вход и историю входов
type UserService struct {
	userRepo UserStore
	tokens   *auth.TokenManager
}

func NewUserService(userRepo UserStore, tokens *auth.TokenManager) *UserService {
	return &UserService{userRepo: userRepo, tokens: tokens}
}

// RegisterInput — данные регистрации нового пользователя
type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Register создает пользователя с bcrypt-хешем пароля
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.New(apperr.KindValidation, "valid email is required")
	}
	if len(input.Password) < 8 {
		return nil, apperr.New(apperr.KindValidation, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to hash password")
	}

	user := &domain.User{
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.New(apperr.KindConflict, "email %s is already registered", email)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to create user")
	}

	log.Printf("[UserService] registered user %s (id %d)", user.Email, user.ID)
	return user, nil
}

// Login проверяет пароль и выдает токен доступа.
// Каждая попытка входа, удачная или нет, попадает в историю входов.
func (s *UserService) Login(ctx context.Context, email, password, ip, userAgent string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, apperr.New(apperr.KindPermissionDenied, "invalid credentials")
		}
		return "", nil, apperr.Wrap(apperr.KindPersistence, err, "failed to look up user")
	}
	if !user.IsActive {
		return "", nil, apperr.New(apperr.KindPermissionDenied, "account is deactivated")
	}

	match := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
	s.recordLogin(ctx, user.ID, match, ip, userAgent)
	if !match {
		return "", nil, apperr.New(apperr.KindPermissionDenied, "invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.KindPersistence, err, "failed to issue token")
	}
	return token, user, nil
}

func (s *UserService) recordLogin(ctx context.Context, userID int64, success bool, ip, userAgent string) {
	entry := &domain.LoginHistory{UserID: userID, Success: success}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}
	if err := s.userRepo.RecordLogin(ctx, entry); err != nil {
		log.Printf("[UserService] failed to record login for user %d: %v", userID, err)
	}
}

// GetByID возвращает пользователя по идентификатору
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "user %d not found", id)
		}
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to get user")
	}
	return user, nil
}

// LoginHistory возвращает последние входы пользователя
func (s *UserService) LoginHistory(ctx context.Context, userID int64, limit int) ([]domain.LoginHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	entries, err := s.userRepo.LoginHistory(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "failed to get login history")
	}
	return entries, nil
}
