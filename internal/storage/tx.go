package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrConflict — транзакция не может быть завершена из-за конкурентной записи, её можно повторить
	ErrConflict = errors.New("transaction conflict")
	// ErrUnavailable — хранилище временно недоступно
	ErrUnavailable = errors.New("store unavailable")
)

// Querier описывает операции, общие для *sql.DB и *sql.Tx.
// Методы репозиториев, которые должны выполняться внутри транзакции, принимают Querier.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx — единица работы: либо Commit, либо Rollback
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// TxBeginner открывает транзакции
type TxBeginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}

type txBeginner struct {
	db        *sql.DB
	isolation sql.IsolationLevel
}

// NewTxBeginner создаёт открыватель транзакций с заданным уровнем изоляции
func NewTxBeginner(db *sql.DB, isolation sql.IsolationLevel) TxBeginner {
	return &txBeginner{db: db, isolation: isolation}
}

func (b *txBeginner) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := b.db.BeginTx(ctx, &sql.TxOptions{Isolation: b.isolation})
	if err != nil {
		return nil, Classify(err)
	}
	return tx, nil
}

// ParseIsolationLevel переводит значение из конфига в уровень изоляции
func ParseIsolationLevel(level string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "repeatable_read", "repeatable read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	case "read_committed", "read committed":
		return sql.LevelReadCommitted, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unknown isolation level %q", level)
	}
}

// Classify приводит ошибки драйвера к ErrConflict / ErrUnavailable.
// Остальные ошибки возвращаются как есть.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case "57P01", "57P02", "57P03", "53300": // shutdown, cannot_connect_now, too_many_connections
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if pqErr.Code.Class() == "08" { // connection_exception
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
