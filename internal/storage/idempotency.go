package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "checkout:idem:"
	pendingMarker        = "pending"
)

var (
	// ErrRequestInProgress — запрос с тем же ключом ещё выполняется
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
	// ErrReceiptNotFound — по ключу ничего не сохранено
	ErrReceiptNotFound = errors.New("idempotency receipt not found")
)

// снимаем отметку только если по ключу ещё не записан результат
var releasePendingScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// IdempotencyStorage хранит результаты оформления заказов по ключу идемпотентности.
type IdempotencyStorage interface {
	// Reserve ставит отметку "выполняется"; false, если ключ уже занят
	Reserve(ctx context.Context, userID int64, key string) (bool, error)
	// Load возвращает сохранённый результат, ErrRequestInProgress или ErrReceiptNotFound
	Load(ctx context.Context, userID int64, key string) (*models.CheckoutResult, error)
	Save(ctx context.Context, userID int64, key string, result *models.CheckoutResult) error
	// Release снимает отметку после неуспешного оформления, чтобы запрос можно было повторить
	Release(ctx context.Context, userID int64, key string) error
}

type idempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyRepository(client *redis.Client, ttl time.Duration) IdempotencyStorage {
	return &idempotencyRepository{client: client, ttl: ttl}
}

func idempotencyKey(userID int64, key string) string {
	return fmt.Sprintf("%s%d:%s", idempotencyKeyPrefix, userID, key)
}

func (r *idempotencyRepository) Reserve(ctx context.Context, userID int64, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKey(userID, key), pendingMarker, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *idempotencyRepository) Load(ctx context.Context, userID int64, key string) (*models.CheckoutResult, error) {
	raw, err := r.client.Get(ctx, idempotencyKey(userID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}
	if raw == pendingMarker {
		return nil, ErrRequestInProgress
	}

	var result models.CheckoutResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency receipt: %w", err)
	}
	return &result, nil
}

func (r *idempotencyRepository) Save(ctx context.Context, userID int64, key string, result *models.CheckoutResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, idempotencyKey(userID, key), raw, r.ttl).Err()
}

func (r *idempotencyRepository) Release(ctx context.Context, userID int64, key string) error {
	return releasePendingScript.Run(ctx, r.client, []string{idempotencyKey(userID, key)}, pendingMarker).Err()
}
