package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/online-store/internal/service"
	"github.com/shopspring/decimal"
)

// CreateProductRequest — тело запроса на создание товара
type CreateProductRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Description string           `json:"description" validate:"max=2000"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       int              `json:"stock" validate:"gte=0"`
}

// UpdateProductRequest — частичное изменение карточки, отсутствующие поля не меняются.
// Остаток меняется только через POST /api/products/{id}/restock.
type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

// RestockRequest — поступление товара на склад
type RestockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// ListProductsHandler обрабатывает GET /api/products
func ListProductsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		products, err := catalog.ListProducts(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, products)
	}
}

// TopProductsHandler обрабатывает GET /api/products/top?limit=N
func TopProductsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.TopProductsHandler"
		logger := log.With(slog.String("op", op))

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 100 {
				writeError(w, logger, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = n
		}

		products, err := catalog.TopProducts(r.Context(), limit)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, products)
	}
}

// RecentProductsHandler обрабатывает GET /api/products/recent
func RecentProductsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RecentProductsHandler"
		logger := log.With(slog.String("op", op))

		products, err := catalog.RecentProducts(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, products)
	}
}

// GetProductHandler обрабатывает GET /api/products/{id}
func GetProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := int64Param(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid product id")
			return
		}

		product, err := catalog.GetProduct(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, product)
	}
}

// CreateProductHandler обрабатывает POST /api/products
func CreateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		var req CreateProductRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		product, err := catalog.CreateProduct(r.Context(), req.Name, req.Description, *req.Price, req.Stock)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, product)
	}
}

// UpdateProductHandler обрабатывает PUT /api/products/{id}
func UpdateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := int64Param(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid product id")
			return
		}

		var req UpdateProductRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}
		if req.Stock != nil {
			writeError(w, logger, http.StatusBadRequest, "stock is changed via POST /api/products/{id}/restock")
			return
		}

		product, err := catalog.UpdateProduct(r.Context(), id, service.ProductPatch{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
		})
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, product)
	}
}

// RestockProductHandler обрабатывает POST /api/products/{id}/restock
func RestockProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RestockProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := int64Param(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid product id")
			return
		}

		var req RestockRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		product, err := catalog.RestockProduct(r.Context(), id, req.Quantity)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, product)
	}
}

// DeleteProductHandler обрабатывает DELETE /api/products/{id}.
// Строки корзин с этим товаром остаются, оформление их отклонит.
func DeleteProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := int64Param(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, logger, http.StatusBadRequest, "invalid product id")
			return
		}

		if err := catalog.DeleteProduct(r.Context(), id); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
