package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/online-store/internal/service"
)

// UpdateProfileRequest — отсутствующие поля профиля не меняются
type UpdateProfileRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8"`
}

// ProfileResponse — данные аккаунта без хэша пароля
type ProfileResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func profileResponse(u *models.User) ProfileResponse {
	return ProfileResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

// ProfileHandler обрабатывает GET /api/auth/profile
func ProfileHandler(log *slog.Logger, profiles service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProfileHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := profiles.GetProfile(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, profileResponse(user))
	}
}

// UpdateProfileHandler обрабатывает PUT /api/auth/profile
func UpdateProfileHandler(log *slog.Logger, profiles service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProfileHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req UpdateProfileRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		user, err := profiles.UpdateProfile(r.Context(), userID, service.ProfileUpdate{
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, profileResponse(user))
	}
}
