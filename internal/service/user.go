package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"commentflow/internal/model"
	"commentflow/internal/repository"
)

// UserService handles registration, login and profile reads.
type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if name == "" || len(name) > model.MaxNameLength {
		return nil, fmt.Errorf("invalid name")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email")
	}
	if len(req.Password) < model.MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", model.MinPasswordLength)
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email exists: %w", err)
	}
	if exists {
		return nil, model.ErrEmailExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.New(),
		Name:           name,
		Email:          email,
		PasswordHashed: string(hashed),
		IsActive:       true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("[UserService] Registered user %s", user.ID)
	return user, nil
}

// Login verifies credentials. Unknown email and wrong password both return
// ErrInvalidCredentials so callers cannot probe for accounts.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if err == model.ErrUserNotFound {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	return user, nil
}

// GetByID returns a user profile.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// SetAvatar records a freshly uploaded avatar and returns the previous
// storage key so the caller can clean it up.
func (s *UserService) SetAvatar(ctx context.Context, id uuid.UUID, upload *model.UploadResult) (previousKey string, err error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.userRepo.UpdateAvatar(ctx, id, upload.URL, upload.Key); err != nil {
		return "", err
	}
	if user.AvatarKey != nil {
		previousKey = *user.AvatarKey
	}
	return previousKey, nil
}
