package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/linemk/online-store/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/online-store/internal/service"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

// CheckoutResponse — ответ при успешном оформлении
type CheckoutResponse struct {
	Message string    `json:"message"`
	OrderID uuid.UUID `json:"order_id"`
	Total   string    `json:"total"`
}

// CheckoutHandler обрабатывает POST /api/orders/checkout.
// Заголовок Idempotency-Key необязателен: с ним повтор запроса вернёт тот же заказ.
func CheckoutHandler(log *slog.Logger, checkout service.CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CheckoutHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}

		key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
		if len(key) > maxIdempotencyKeyLen {
			writeError(w, logger, http.StatusBadRequest, "idempotency key is too long")
			return
		}

		result, err := checkout.Checkout(r.Context(), userID, key)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, logger, http.StatusCreated, CheckoutResponse{
			Message: "Order placed successfully",
			OrderID: result.OrderID,
			Total:   result.Total.StringFixed(2),
		})
	}
}
