package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// ProfileUpdate — изменяемые поля профиля; nil оставляет текущее значение
type ProfileUpdate struct {
	Email    *string
	Password *string
}

// ProfileService — просмотр и изменение данных своего аккаунта
type ProfileService interface {
	GetProfile(ctx context.Context, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*models.User, error)
}

type profileService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
}

func NewProfileService(log *slog.Logger, userRepo storage.UserStorage) ProfileService {
	return &profileService{log: log, userRepo: userRepo}
}

func (s *profileService) GetProfile(ctx context.Context, userID int64) (*models.User, error) {
	const op = "service.ProfileService.GetProfile"

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		s.log.Error("failed to get user", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdateProfile меняет email и/или пароль. Новый пароль хэшируется так же, как при регистрации.
func (s *profileService) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*models.User, error) {
	const op = "service.ProfileService.UpdateProfile"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user := *current

	if update.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*update.Email))
	}
	if update.Password != nil {
		passHash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("failed to hash password", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
		}
		user.PassHash = passHash
	}

	if err := s.userRepo.UpdateUser(ctx, &user); err != nil {
		switch {
		case errors.Is(err, storage.ErrEmailTaken):
			logger.Warn("email already registered")
			return nil, ErrEmailTaken
		case errors.Is(err, storage.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		logger.Error("failed to update user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("profile updated")
	return &user, nil
}
