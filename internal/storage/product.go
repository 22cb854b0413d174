package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/online-store/internal/domain/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrStockNotDecremented — условное списание не затронуло ни одной строки:
	// товара нет либо остатка не хватает
	ErrStockNotDecremented = errors.New("stock not decremented")
)

const productColumns = "id, name, description, price, stock, sold, created_at, updated_at"

// ProductStorage описывает методы для работы с таблицей товаров.
type ProductStorage interface {
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	// ListTopSelling возвращает самые продаваемые товары
	ListTopSelling(ctx context.Context, limit int) ([]*models.Product, error)
	// ListRecent возвращает последние добавленные товары
	ListRecent(ctx context.Context, limit int) ([]*models.Product, error)

	// LockProductsByIDs читает и блокирует товары внутри транзакции, строки блокируются по возрастанию id
	LockProductsByIDs(ctx context.Context, q Querier, ids []int64) (map[int64]*models.Product, error)
	// GetProductByIDTx читает товар внутри транзакции
	GetProductByIDTx(ctx context.Context, q Querier, id int64) (*models.Product, error)
	// DecrementStock списывает остаток, только если его хватает; возвращает новый остаток
	DecrementStock(ctx context.Context, q Querier, id int64, quantity int, trackSold bool) (int, error)
	// IncrementStock прибавляет поступление к текущему остатку; возвращает новый остаток
	IncrementStock(ctx context.Context, q Querier, id int64, quantity int) (int, error)
}

// productRepository — конкретная реализация ProductStorage.
type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт новый репозиторий товаров.
func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Sold, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	query := `INSERT INTO products (name, description, price, stock, sold, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
	          RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, product.Name, product.Description, product.Price, product.Stock).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// UpdateProduct меняет поля каталога: название, описание, цену.
// Остаток и счётчик продаж меняются только через списание и поступление.
func (r *productRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `UPDATE products SET name = $1, description = $2, price = $3, updated_at = NOW()
	          WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, product.Name, product.Description, product.Price, product.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	return r.GetProductByIDTx(ctx, r.db, id)
}

func (r *productRepository) GetProductByIDTx(ctx context.Context, q Querier, id int64) (*models.Product, error) {
	row := q.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	return r.queryProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
}

func (r *productRepository) ListTopSelling(ctx context.Context, limit int) ([]*models.Product, error) {
	return r.queryProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY sold DESC, id LIMIT $1", limit)
}

func (r *productRepository) ListRecent(ctx context.Context, limit int) ([]*models.Product, error) {
	return r.queryProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY created_at DESC, id DESC LIMIT $1", limit)
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...any) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) LockProductsByIDs(ctx context.Context, q Querier, ids []int64) (map[int64]*models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE"
	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, Classify(err)
	}
	defer rows.Close()

	products := make(map[int64]*models.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(err)
	}
	return products, nil
}

func (r *productRepository) DecrementStock(ctx context.Context, q Querier, id int64, quantity int, trackSold bool) (int, error) {
	query := `UPDATE products SET stock = stock - $1, updated_at = NOW()
	          WHERE id = $2 AND stock >= $1
	          RETURNING stock`
	if trackSold {
		query = `UPDATE products SET stock = stock - $1, sold = sold + $1, updated_at = NOW()
		         WHERE id = $2 AND stock >= $1
		         RETURNING stock`
	}

	var remaining int
	if err := q.QueryRowContext(ctx, query, quantity, id).Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrStockNotDecremented
		}
		return 0, Classify(err)
	}
	return remaining, nil
}

func (r *productRepository) IncrementStock(ctx context.Context, q Querier, id int64, quantity int) (int, error) {
	query := `UPDATE products SET stock = stock + $1, updated_at = NOW()
	          WHERE id = $2
	          RETURNING stock`

	var stock int
	if err := q.QueryRowContext(ctx, query, quantity, id).Scan(&stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, Classify(err)
	}
	return stock, nil
}
