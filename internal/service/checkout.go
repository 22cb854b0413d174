package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/online-store/internal/domain/models"
	"github.com/linemk/online-store/internal/storage"
)

// CheckoutService оформляет корзину пользователя в заказ
type CheckoutService interface {
	// Checkout возвращает результат или *CheckoutError. Пустой idempotencyKey отключает повтор по ключу.
	Checkout(ctx context.Context, userID int64, idempotencyKey string) (*models.CheckoutResult, error)
}

// CheckoutObserver получает итог каждого оформления, реализуется метриками
type CheckoutObserver interface {
	ObserveCheckout(result string, duration time.Duration)
}

// CheckoutConfig — необязательные зависимости координатора
type CheckoutConfig struct {
	// Timeout ограничивает всю транзакцию оформления, 0 — без ограничения
	Timeout     time.Duration
	Idempotency storage.IdempotencyStorage
	Observer    CheckoutObserver
}

const (
	resultCommitted = "committed"
	resultReplayed  = "replayed"
	resultDuplicate = "duplicate"
)

type checkoutService struct {
	log          *slog.Logger
	txs          storage.TxBeginner
	reader       *CartSnapshotReader
	ledger       *InventoryLedger
	materializer *OrderMaterializer
	cfg          CheckoutConfig
}

func NewCheckoutService(
	log *slog.Logger,
	txs storage.TxBeginner,
	reader *CartSnapshotReader,
	ledger *InventoryLedger,
	materializer *OrderMaterializer,
	cfg CheckoutConfig,
) CheckoutService {
	return &checkoutService{
		log:          log,
		txs:          txs,
		reader:       reader,
		ledger:       ledger,
		materializer: materializer,
		cfg:          cfg,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, userID int64, idempotencyKey string) (*models.CheckoutResult, error) {
	const op = "service.CheckoutService.Checkout"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))
	if idempotencyKey != "" {
		logger = logger.With(slog.String("idempotencyKey", idempotencyKey))
	}
	start := time.Now()

	reserved := false
	if idempotencyKey != "" && s.cfg.Idempotency != nil {
		replayed, ok, err := s.reserveKey(ctx, logger, userID, idempotencyKey)
		if err != nil {
			s.observe(resultDuplicate, start)
			return nil, err
		}
		if replayed != nil {
			s.observe(resultReplayed, start)
			return replayed, nil
		}
		reserved = ok
	}

	result, err := s.checkout(ctx, logger, userID)

	if reserved {
		// ключ обновляем даже если клиент уже отключился
		bg := context.WithoutCancel(ctx)
		if err != nil {
			if relErr := s.cfg.Idempotency.Release(bg, userID, idempotencyKey); relErr != nil {
				logger.Error("failed to release idempotency key", slog.Any("error", relErr))
			}
		} else if saveErr := s.cfg.Idempotency.Save(bg, userID, idempotencyKey, result); saveErr != nil {
			// без снятой отметки повтор с этим ключом получал бы 409 до истечения TTL
			logger.Error("failed to save idempotency receipt", slog.Any("error", saveErr))
			if relErr := s.cfg.Idempotency.Release(bg, userID, idempotencyKey); relErr != nil {
				logger.Error("failed to release idempotency key", slog.Any("error", relErr))
			}
		}
	}

	if err != nil {
		var ce *CheckoutError
		if errors.As(err, &ce) {
			s.observe(string(ce.Reason), start)
		}
		return nil, err
	}
	s.observe(resultCommitted, start)
	return result, nil
}

// reserveKey ставит отметку по ключу. Возвращает сохранённый результат для повтора,
// либо ok=true, если ключ занят этим запросом.
// Недоступность Redis не мешает оформлению, просто без защиты от повторов.
func (s *checkoutService) reserveKey(ctx context.Context, logger *slog.Logger, userID int64, key string) (*models.CheckoutResult, bool, error) {
	ok, err := s.cfg.Idempotency.Reserve(ctx, userID, key)
	if err != nil {
		logger.Warn("idempotency store unavailable, proceeding without replay protection", slog.Any("error", err))
		return nil, false, nil
	}
	if ok {
		return nil, true, nil
	}

	stored, err := s.cfg.Idempotency.Load(ctx, userID, key)
	switch {
	case err == nil:
		logger.Info("replaying stored checkout result", slog.String("orderID", stored.OrderID.String()))
		return stored, false, nil
	case errors.Is(err, storage.ErrRequestInProgress), errors.Is(err, storage.ErrReceiptNotFound):
		logger.Warn("duplicate checkout request")
		return nil, false, ErrDuplicateRequest
	default:
		logger.Warn("failed to load idempotency receipt, proceeding without replay protection", slog.Any("error", err))
		return nil, false, nil
	}
}

// checkout проходит состояния Start → Load → Validate → Materialize → Commit.
// Любая ошибка до коммита откатывает транзакцию целиком.
func (s *checkoutService) checkout(ctx context.Context, logger *slog.Logger, userID int64) (*models.CheckoutResult, error) {
	state := models.CheckoutStateStart
	logger.Info("starting checkout transaction")

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	tx, err := s.txs.BeginTx(ctx)
	if err != nil {
		return nil, s.abort(logger, state, fmt.Errorf("failed to begin transaction: %w", err))
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
	}()

	state = models.CheckoutStateLoad
	lines, err := s.reader.Snapshot(ctx, tx, userID)
	if err != nil {
		return nil, s.abort(logger, state, err)
	}

	state = models.CheckoutStateValidate
	for _, line := range lines {
		if err := s.ledger.Check(line); err != nil {
			return nil, s.abort(logger, state, err)
		}
	}
	grandTotal, perLine := ComputeTotals(lines)

	state = models.CheckoutStateMaterialize
	order, err := s.materializer.Materialize(ctx, tx, userID, lines, perLine, grandTotal)
	if err != nil {
		return nil, s.abort(logger, state, err)
	}

	state = models.CheckoutStateCommit
	if err := tx.Commit(); err != nil {
		return nil, s.abort(logger, state, fmt.Errorf("failed to commit transaction: %w", storage.Classify(err)))
	}
	committed = true

	logger.Info("checkout committed",
		slog.String("state", models.CheckoutStateCommitted.String()),
		slog.String("orderID", order.ID.String()),
		slog.String("total", order.Total.StringFixed(2)),
		slog.Int("items", len(order.Items)),
	)
	return &models.CheckoutResult{OrderID: order.ID, Total: order.Total}, nil
}

func (s *checkoutService) abort(logger *slog.Logger, state models.CheckoutState, err error) error {
	ce := newCheckoutError(state, err)
	attrs := []any{
		slog.String("state", models.CheckoutStateAborted.String()),
		slog.String("failedAt", state.String()),
		slog.String("reason", string(ce.Reason)),
		slog.Any("error", err),
	}
	if ce.ProductID != 0 {
		attrs = append(attrs, slog.Int64("productID", ce.ProductID))
	}
	if ce.Reason == ReasonInternal {
		logger.Error("checkout aborted", attrs...)
	} else {
		logger.Warn("checkout aborted", attrs...)
	}
	return ce
}

func (s *checkoutService) observe(result string, start time.Time) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveCheckout(result, time.Since(start))
	}
}
