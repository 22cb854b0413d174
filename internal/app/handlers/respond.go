package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/service"
)

// retryAfterSeconds — подсказка клиенту при недоступности хранилища
const retryAfterSeconds = 1

var validate = validator.New()

// ErrorResponse — тело ответа с ошибкой
type ErrorResponse struct {
	Error       string `json:"error"`
	Reason      string `json:"reason,omitempty"`
	ProductID   int64  `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Available   *int   `json:"available,omitempty"`
	Requested   *int   `json:"requested,omitempty"`
	Retryable   bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// decodeAndValidate читает JSON-тело и проверяет теги validate
func decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Error("invalid request: decoding error", slog.Any("error", err))
		writeError(w, logger, http.StatusBadRequest, "invalid request")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		logger.Error("invalid request: validation error", slog.Any("error", err))
		writeError(w, logger, http.StatusBadRequest, "validation error")
		return false
	}
	return true
}

func int64Param(value string) (int64, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
// Текст внутренних ошибок клиенту не отдаётся.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ce *service.CheckoutError
	if errors.As(err, &ce) {
		writeCheckoutError(w, logger, ce)
		return
	}

	var stockErr *service.InsufficientStockError
	var notFoundErr *service.ProductNotFoundError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, logger, http.StatusConflict, ErrorResponse{
			Error:       service.ErrInsufficientStock.Error(),
			Reason:      string(service.ReasonInsufficientStock),
			ProductID:   stockErr.ProductID,
			ProductName: stockErr.ProductName,
			Available:   &stockErr.Available,
			Requested:   &stockErr.Requested,
		})
	case errors.As(err, &notFoundErr):
		writeJSON(w, logger, http.StatusNotFound, ErrorResponse{
			Error:     service.ErrProductNotFound.Error(),
			Reason:    string(service.ReasonProductNotFound),
			ProductID: notFoundErr.ProductID,
		})
	case errors.Is(err, service.ErrCartItemNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrUserNotFound):
		writeError(w, logger, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateRequest), errors.Is(err, service.ErrEmailTaken):
		writeError(w, logger, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, logger, http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrEmptyProductName),
		errors.Is(err, models.ErrNegativePrice),
		errors.Is(err, models.ErrPriceScale),
		errors.Is(err, models.ErrNegativeStock),
		errors.Is(err, models.ErrNonPositiveQuantity):
		writeError(w, logger, http.StatusBadRequest, err.Error())
	default:
		logger.Error("internal error", slog.Any("error", err))
		writeError(w, logger, http.StatusInternalServerError, "internal server error")
	}
}

func writeCheckoutError(w http.ResponseWriter, logger *slog.Logger, ce *service.CheckoutError) {
	resp := ErrorResponse{Reason: string(ce.Reason), Retryable: ce.Retryable()}
	status := http.StatusInternalServerError

	switch ce.Reason {
	case service.ReasonEmptyCart:
		status = http.StatusBadRequest
		resp.Error = service.ErrEmptyCart.Error()
	case service.ReasonProductNotFound:
		status = http.StatusNotFound
		resp.Error = service.ErrProductNotFound.Error()
		resp.ProductID = ce.ProductID
	case service.ReasonInsufficientStock:
		status = http.StatusConflict
		resp.Error = service.ErrInsufficientStock.Error()
		resp.ProductID = ce.ProductID
		resp.ProductName = ce.ProductName
		resp.Available = &ce.Available
		resp.Requested = &ce.Requested
	case service.ReasonTransactionConflict:
		status = http.StatusConflict
		resp.Error = service.ErrTransactionConflict.Error()
	case service.ReasonStoreUnavailable:
		status = http.StatusServiceUnavailable
		resp.Error = service.ErrStoreUnavailable.Error()
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	default:
		logger.Error("checkout failed with internal error", slog.Any("error", ce.Err))
		resp.Error = "internal server error"
	}

	writeJSON(w, logger, status, resp)
}
