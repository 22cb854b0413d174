package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/online-store/internal/app/handlers"
	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/online-store/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthService — фиктивная реализация для тестирования.
type fakeAuthService struct {
	token string
	err   error
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (string, error) {
	return f.token, f.err
}

type fakeCheckoutService struct {
	result  *models.CheckoutResult
	err     error
	userID  int64
	lastKey string
}

func (f *fakeCheckoutService) Checkout(_ context.Context, userID int64, key string) (*models.CheckoutResult, error) {
	f.userID = userID
	f.lastKey = key
	return f.result, f.err
}

type fakeOrderService struct {
	orders []*models.Order
	err    error
}

func (f *fakeOrderService) ListOrders(context.Context, int64) ([]*models.Order, error) {
	return f.orders, f.err
}

func (f *fakeOrderService) GetOrder(_ context.Context, _ int64, id uuid.UUID) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, o := range f.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, service.ErrOrderNotFound
}

type fakeCartService struct {
	items     []*models.CartItem
	err       error
	added     *models.CartItem
	removedID int64
}

func (f *fakeCartService) ListCart(context.Context, int64) ([]*models.CartItem, error) {
	return f.items, f.err
}

func (f *fakeCartService) AddToCart(_ context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.added = &models.CartItem{ID: 1, UserID: userID, ProductID: productID, Quantity: quantity}
	return f.added, nil
}

func (f *fakeCartService) RemoveFromCart(_ context.Context, _ int64, itemID int64) error {
	f.removedID = itemID
	return f.err
}

type fakeCatalogService struct {
	products  []*models.Product
	err       error
	topLimit  int
	lastPatch service.ProductPatch
	restocked int
}

func (f *fakeCatalogService) ListProducts(context.Context) ([]*models.Product, error) {
	return f.products, f.err
}

func (f *fakeCatalogService) TopProducts(_ context.Context, limit int) ([]*models.Product, error) {
	f.topLimit = limit
	return f.products, f.err
}

func (f *fakeCatalogService) RecentProducts(context.Context) ([]*models.Product, error) {
	return f.products, f.err
}

func (f *fakeCatalogService) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, &service.ProductNotFoundError{ProductID: id}
}

func (f *fakeCatalogService) CreateProduct(_ context.Context, name, description string, price decimal.Decimal, stock int) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, err := models.NewProduct(name, description, price, stock)
	if err != nil {
		return nil, err
	}
	p.ID = 42
	return p, nil
}

func (f *fakeCatalogService) UpdateProduct(ctx context.Context, id int64, patch service.ProductPatch) (*models.Product, error) {
	f.lastPatch = patch
	cur, err := f.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	p := *cur
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	return &p, nil
}

func (f *fakeCatalogService) RestockProduct(ctx context.Context, id int64, quantity int) (*models.Product, error) {
	cur, err := f.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	f.restocked = quantity
	p := *cur
	p.Stock += quantity
	return &p, nil
}

func (f *fakeCatalogService) DeleteProduct(ctx context.Context, id int64) error {
	_, err := f.GetProduct(ctx, id)
	return err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withUser кладёт userID в контекст так же, как это делает JWT middleware
func withUser(req *http.Request, userID int64) *http.Request {
	ctx := context.WithValue(req.Context(), jwtmiddleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

// withURLParam эмулирует разбор пути chi
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestAuthHandler_Success(t *testing.T) {
	handler := handlers.AuthHandler(testLogger(), &fakeAuthService{token: "test-token"})

	reqBody := `{"email": "test@example.com", "password": "password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp handlers.AuthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "test-token", resp.Token)
}

func TestAuthHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"email": "test@example.com", "password":`},
		{"short password", `{"email": "test@example.com", "password": "short"}`},
		{"not an email", `{"email": "test", "password": "password123"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.AuthHandler(testLogger(), &fakeAuthService{})
			req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestAuthHandler_InvalidCredentials(t *testing.T) {
	svc := &fakeAuthService{err: fmt.Errorf("service.AuthService.Login: %w", service.ErrInvalidCredentials)}
	handler := handlers.AuthHandler(testLogger(), svc)

	reqBody := `{"email": "test@example.com", "password": "password123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewBufferString(reqBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCheckoutHandler_Success(t *testing.T) {
	orderID := uuid.New()
	svc := &fakeCheckoutService{result: &models.CheckoutResult{OrderID: orderID, Total: decimal.RequireFromString("42.7")}}
	handler := handlers.CheckoutHandler(testLogger(), svc)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/checkout", nil)
	req.Header.Set(handlers.IdempotencyKeyHeader, " key-1 ")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, withUser(req, 7))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, int64(7), svc.userID)
	assert.Equal(t, "key-1", svc.lastKey)

	var resp handlers.CheckoutResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, orderID, resp.OrderID)
	assert.Equal(t, "42.70", resp.Total)
	assert.NotEmpty(t, resp.Message)
}

func TestCheckoutHandler_Unauthorized(t *testing.T) {
	handler := handlers.CheckoutHandler(testLogger(), &fakeCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders/checkout", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCheckoutHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		check      func(t *testing.T, rr *httptest.ResponseRecorder)
	}{
		{
			name:       "empty cart",
			err:        &service.CheckoutError{Reason: service.ReasonEmptyCart, State: models.CheckoutStateLoad, Err: service.ErrEmptyCart},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				resp := decodeError(t, rr)
				assert.Equal(t, "empty_cart", resp.Reason)
				assert.False(t, resp.Retryable)
			},
		},
		{
			name:       "product not found",
			err:        &service.CheckoutError{Reason: service.ReasonProductNotFound, ProductID: 3, Err: &service.ProductNotFoundError{ProductID: 3}},
			wantStatus: http.StatusNotFound,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				assert.Equal(t, int64(3), decodeError(t, rr).ProductID)
			},
		},
		{
			name: "insufficient stock",
			err: &service.CheckoutError{
				Reason:      service.ReasonInsufficientStock,
				ProductID:   1,
				ProductName: "book",
				Available:   0,
				Requested:   2,
				Err:         &service.InsufficientStockError{ProductID: 1, ProductName: "book", Requested: 2},
			},
			wantStatus: http.StatusConflict,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				resp := decodeError(t, rr)
				assert.Equal(t, int64(1), resp.ProductID)
				assert.Equal(t, "book", resp.ProductName)
				require.NotNil(t, resp.Available)
				require.NotNil(t, resp.Requested)
				assert.Equal(t, 0, *resp.Available)
				assert.Equal(t, 2, *resp.Requested)
			},
		},
		{
			name:       "transaction conflict",
			err:        &service.CheckoutError{Reason: service.ReasonTransactionConflict, Err: errors.New("pq: could not serialize access")},
			wantStatus: http.StatusConflict,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				resp := decodeError(t, rr)
				assert.True(t, resp.Retryable)
				assert.NotContains(t, resp.Error, "pq:")
			},
		},
		{
			name:       "store unavailable",
			err:        &service.CheckoutError{Reason: service.ReasonStoreUnavailable, Err: errors.New("dial tcp: connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				assert.Equal(t, "1", rr.Header().Get("Retry-After"))
				assert.True(t, decodeError(t, rr).Retryable)
			},
		},
		{
			name:       "duplicate request",
			err:        service.ErrDuplicateRequest,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "internal",
			err:        &service.CheckoutError{Reason: service.ReasonInternal, Err: errors.New("secret driver detail")},
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, rr *httptest.ResponseRecorder) {
				assert.NotContains(t, rr.Body.String(), "secret driver detail")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.CheckoutHandler(testLogger(), &fakeCheckoutService{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/orders/checkout", nil)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, withUser(req, 1))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			if tt.check != nil {
				tt.check(t, rr)
			}
		})
	}
}

func TestOrdersHandler(t *testing.T) {
	name := "book"
	order := &models.Order{
		ID:     uuid.New(),
		UserID: 1,
		Total:  decimal.RequireFromString("20.00"),
		Items: []models.OrderItem{
			{ProductID: 1, ProductName: &name, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}
	handler := handlers.OrdersHandler(testLogger(), &fakeOrderService{orders: []*models.Order{order}})

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withUser(req, 1))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got []models.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, order.ID, got[0].ID)
	require.Len(t, got[0].Items, 1)
	assert.Equal(t, "book", *got[0].Items[0].ProductName)
}

func TestOrderHandler(t *testing.T) {
	order := &models.Order{ID: uuid.New(), UserID: 1, Total: decimal.RequireFromString("5.00")}
	svc := &fakeOrderService{orders: []*models.Order{order}}

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"found", order.ID.String(), http.StatusOK},
		{"not found", uuid.NewString(), http.StatusNotFound},
		{"malformed id", "not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.OrderHandler(testLogger(), svc)
			req := httptest.NewRequest(http.MethodGet, "/api/orders/"+tt.id, nil)
			req = withURLParam(withUser(req, 1), "id", tt.id)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestAddToCartHandler(t *testing.T) {
	svc := &fakeCartService{}
	handler := handlers.AddToCartHandler(testLogger(), svc)

	req := httptest.NewRequest(http.MethodPost, "/api/cart", bytes.NewBufferString(`{"product_id": 3, "quantity": 2}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withUser(req, 9))

	assert.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, svc.added)
	assert.Equal(t, int64(9), svc.added.UserID)
	assert.Equal(t, int64(3), svc.added.ProductID)
	assert.Equal(t, 2, svc.added.Quantity)
}

func TestAddToCartHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"zero quantity", `{"product_id": 3, "quantity": 0}`, nil, http.StatusBadRequest},
		{"missing product", `{"quantity": 1}`, nil, http.StatusBadRequest},
		{"unknown product", `{"product_id": 3, "quantity": 1}`, &service.ProductNotFoundError{ProductID: 3}, http.StatusNotFound},
		{"not enough stock", `{"product_id": 3, "quantity": 5}`, &service.InsufficientStockError{ProductID: 3, Available: 1, Requested: 5}, http.StatusConflict},
		{"repository failure", `{"product_id": 3, "quantity": 1}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := handlers.AddToCartHandler(testLogger(), &fakeCartService{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/cart", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, withUser(req, 1))
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestRemoveFromCartHandler(t *testing.T) {
	svc := &fakeCartService{}
	handler := handlers.RemoveFromCartHandler(testLogger(), svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/cart/5", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withURLParam(withUser(req, 1), "id", "5"))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, int64(5), svc.removedID)

	svc.err = service.ErrCartItemNotFound
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, withURLParam(withUser(req, 1), "id", "5"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartHandler(t *testing.T) {
	svc := &fakeCartService{items: []*models.CartItem{{ID: 1, UserID: 1, ProductID: 2, Quantity: 3}}}
	handler := handlers.CartHandler(testLogger(), svc)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, withUser(req, 1))

	assert.Equal(t, http.StatusOK, rr.Code)
	var items []models.CartItem
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestProductHandlers(t *testing.T) {
	svc := &fakeCatalogService{products: []*models.Product{
		{ID: 1, Name: "book", Price: decimal.RequireFromString("10.00"), Stock: 5},
	}}

	t.Run("get existing", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/products/1", nil), "id", "1")
		rr := httptest.NewRecorder()
		handlers.GetProductHandler(testLogger(), svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var p models.Product
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
		assert.Equal(t, "book", p.Name)
		assert.True(t, p.Price.Equal(decimal.RequireFromString("10")))
	})

	t.Run("get missing", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/products/2", nil), "id", "2")
		rr := httptest.NewRecorder()
		handlers.GetProductHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("get bad id", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/products/x", nil), "id", "x")
		rr := httptest.NewRecorder()
		handlers.GetProductHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("create", func(t *testing.T) {
		body := `{"name": "pen", "description": "blue", "price": "1.25", "stock": 10}`
		req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		handlers.CreateProductHandler(testLogger(), svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var p models.Product
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
		assert.Equal(t, int64(42), p.ID)
		assert.True(t, p.Price.Equal(decimal.RequireFromString("1.25")))
	})

	t.Run("create with negative price", func(t *testing.T) {
		body := `{"name": "pen", "price": "-1", "stock": 10}`
		req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		handlers.CreateProductHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("create without price", func(t *testing.T) {
		body := `{"name": "pen", "stock": 10}`
		req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		handlers.CreateProductHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("create with sub-cent price", func(t *testing.T) {
		body := `{"name": "pen", "price": "1.999", "stock": 10}`
		req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		handlers.CreateProductHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, models.ErrPriceScale.Error(), decodeError(t, rr).Error)
	})

	t.Run("update with name only keeps price and stock", func(t *testing.T) {
		body := `{"name": "renamed"}`
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/products/1", bytes.NewBufferString(body)), "id", "1")
		rr := httptest.NewRecorder()
		handlers.UpdateProductHandler(testLogger(), svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, svc.lastPatch.Name)
		assert.Equal(t, "renamed", *svc.lastPatch.Name)
		assert.Nil(t, svc.lastPatch.Price, "absent price must not be sent as zero")
		assert.Nil(t, svc.lastPatch.Description)

		var p models.Product
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
		assert.Equal(t, "renamed", p.Name)
		assert.Equal(t, "10.00", p.Price.StringFixed(2))
		assert.Equal(t, 5, p.Stock)
	})

	t.Run("update rejects stock", func(t *testing.T) {
		body := `{"name": "renamed", "stock": 5}`
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/products/1", bytes.NewBufferString(body)), "id", "1")
		rr := httptest.NewRecorder()
		handlers.UpdateProductHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("restock", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/products/1/restock", bytes.NewBufferString(`{"quantity": 3}`)), "id", "1")
		rr := httptest.NewRecorder()
		handlers.RestockProductHandler(testLogger(), svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 3, svc.restocked)
		var p models.Product
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
		assert.Equal(t, 8, p.Stock)
	})

	t.Run("restock with non-positive quantity", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/products/1/restock", bytes.NewBufferString(`{"quantity": 0}`)), "id", "1")
		rr := httptest.NewRecorder()
		handlers.RestockProductHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("recent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products/recent", nil)
		rr := httptest.NewRecorder()
		handlers.RecentProductsHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		var products []models.Product
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&products))
		assert.Len(t, products, 1)
	})

	t.Run("update missing", func(t *testing.T) {
		body := `{"name": "pen", "price": "1"}`
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/products/9", bytes.NewBufferString(body)), "id", "9")
		rr := httptest.NewRecorder()
		handlers.UpdateProductHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/products/1", nil), "id", "1")
		rr := httptest.NewRecorder()
		handlers.DeleteProductHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("top with limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products/top?limit=3", nil)
		rr := httptest.NewRecorder()
		handlers.TopProductsHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 3, svc.topLimit)
	})

	t.Run("top with bad limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products/top?limit=0", nil)
		rr := httptest.NewRecorder()
		handlers.TopProductsHandler(testLogger(), svc).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

type fakeProfileService struct {
	user   *models.User
	err    error
	update service.ProfileUpdate
}

func (f *fakeProfileService) GetProfile(context.Context, int64) (*models.User, error) {
	return f.user, f.err
}

func (f *fakeProfileService) UpdateProfile(_ context.Context, _ int64, update service.ProfileUpdate) (*models.User, error) {
	f.update = update
	if f.err != nil {
		return nil, f.err
	}
	u := *f.user
	if update.Email != nil {
		u.Email = *update.Email
	}
	return &u, nil
}

func TestProfileHandlers(t *testing.T) {
	user := &models.User{ID: 7, Email: "buyer@example.com", PassHash: []byte("secret-hash")}

	t.Run("get", func(t *testing.T) {
		req := withUser(httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil), 7)
		rr := httptest.NewRecorder()
		handlers.ProfileHandler(testLogger(), &fakeProfileService{user: user}).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "secret-hash")
		var resp handlers.ProfileResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, int64(7), resp.ID)
		assert.Equal(t, "buyer@example.com", resp.Email)
	})

	t.Run("get without user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
		rr := httptest.NewRecorder()
		handlers.ProfileHandler(testLogger(), &fakeProfileService{user: user}).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("get deleted user", func(t *testing.T) {
		req := withUser(httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil), 7)
		rr := httptest.NewRecorder()
		handlers.ProfileHandler(testLogger(), &fakeProfileService{err: service.ErrUserNotFound}).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("update email only", func(t *testing.T) {
		svc := &fakeProfileService{user: user}
		body := `{"email": "new@example.com"}`
		req := withUser(httptest.NewRequest(http.MethodPut, "/api/auth/profile", bytes.NewBufferString(body)), 7)
		rr := httptest.NewRecorder()
		handlers.UpdateProfileHandler(testLogger(), svc).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, svc.update.Email)
		assert.Equal(t, "new@example.com", *svc.update.Email)
		assert.Nil(t, svc.update.Password)
	})

	t.Run("update validation", func(t *testing.T) {
		for _, body := range []string{`{"email": "not-an-email"}`, `{"password": "short"}`} {
			req := withUser(httptest.NewRequest(http.MethodPut, "/api/auth/profile", bytes.NewBufferString(body)), 7)
			rr := httptest.NewRecorder()
			handlers.UpdateProfileHandler(testLogger(), &fakeProfileService{user: user}).ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		}
	})

	t.Run("update with taken email", func(t *testing.T) {
		body := `{"email": "taken@example.com"}`
		req := withUser(httptest.NewRequest(http.MethodPut, "/api/auth/profile", bytes.NewBufferString(body)), 7)
		rr := httptest.NewRecorder()
		handlers.UpdateProfileHandler(testLogger(), &fakeProfileService{user: user, err: service.ErrEmailTaken}).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}
