// Package settings stores user options and manually recorded purchases in SQLite.
package settings

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DefaultMonthlyBudget is stored when no options row exists yet.
var DefaultMonthlyBudget = decimal.NewFromInt(1100)

// ErrNotFound is returned when a purchase id does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the SQLite-backed settings store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate settings")
	}

	logger.Info("settings store opened", zap.String("path", path))
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS options (
			id             TEXT PRIMARY KEY,
			monthly_budget TEXT NOT NULL DEFAULT '1100'
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id         TEXT PRIMARY KEY,
			amount_btc TEXT NOT NULL,
			price      TEXT NOT NULL,
			date       TEXT NOT NULL DEFAULT CURRENT_DATE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_date ON purchases(date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// MonthlyBudget returns the configured budget, creating the options row with
// the default on first use.
func (s *Store) MonthlyBudget(ctx context.Context) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT monthly_budget FROM options LIMIT 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.insertOptions(ctx, DefaultMonthlyBudget); err != nil {
			return decimal.Zero, err
		}
		return DefaultMonthlyBudget, nil
	}
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "read monthly budget")
	}

	budget, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "decode monthly budget %q", raw)
	}
	return budget, nil
}

// SetMonthlyBudget updates the budget.
func (s *Store) SetMonthlyBudget(ctx context.Context, budget decimal.Decimal) error {
	if !budget.IsPositive() {
		return fmt.Errorf("monthly budget must be positive, got %s", budget.String())
	}

	res, err := s.db.ExecContext(ctx, `UPDATE options SET monthly_budget = ?`, budget.String())
	if err != nil {
		return errors.Wrap(err, "update monthly budget")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		if err := s.insertOptions(ctx, budget); err != nil {
			return err
		}
	}

	s.logger.Info("monthly budget updated", zap.String("budget", budget.String()))
	return nil
}

func (s *Store) insertOptions(ctx context.Context, budget decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO options (id, monthly_budget) VALUES (?, ?)`,
		uuid.NewString(), budget.String(),
	)
	return errors.Wrap(err, "insert options")
}

// Purchases lists all purchases, newest first.
func (s *Store) Purchases(ctx context.Context) ([]domain.Purchase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount_btc, price, date FROM purchases ORDER BY date DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, "query purchases")
	}
	defer rows.Close()

	var out []domain.Purchase
	for rows.Next() {
		var id, amount, price, date string
		if err := rows.Scan(&id, &amount, &price, &date); err != nil {
			return nil, errors.Wrap(err, "scan purchase")
		}

		p, err := decodePurchase(id, amount, price, date)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, errors.Wrap(rows.Err(), "iterate purchases")
}

// AddPurchase records a purchase under a new id.
func (s *Store) AddPurchase(ctx context.Context, amountBTC, price decimal.Decimal, date domain.Date) (domain.Purchase, error) {
	p, err := domain.NewPurchase(uuid.NewString(), amountBTC, price, date)
	if err != nil {
		return domain.Purchase{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO purchases (id, amount_btc, price, date) VALUES (?, ?, ?, ?)`,
		p.ID, p.AmountBTC.String(), p.Price.String(), p.Date.String(),
	)
	if err != nil {
		return domain.Purchase{}, errors.Wrap(err, "insert purchase")
	}

	s.logger.Info("purchase recorded",
		zap.String("id", p.ID),
		zap.String("amount_btc", p.AmountBTC.String()),
		zap.String("price", p.Price.String()),
		zap.String("date", p.Date.String()),
	)
	return p, nil
}

// UpdatePurchase overwrites an existing purchase.
func (s *Store) UpdatePurchase(ctx context.Context, p domain.Purchase) error {
	if _, err := domain.NewPurchase(p.ID, p.AmountBTC, p.Price, p.Date); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE purchases SET amount_btc = ?, price = ?, date = ? WHERE id = ?`,
		p.AmountBTC.String(), p.Price.String(), p.Date.String(), p.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update purchase")
	}
	return requireAffected(res, p.ID)
}

// DeletePurchase removes a purchase.
func (s *Store) DeletePurchase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete purchase")
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "purchase %s", id)
	}
	return nil
}

func decodePurchase(id, amount, price, date string) (domain.Purchase, error) {
	amountBTC, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Purchase{}, errors.Wrapf(err, "decode purchase %s amount", id)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Purchase{}, errors.Wrapf(err, "decode purchase %s price", id)
	}
	d, err := domain.ParseDate(date)
	if err != nil {
		return domain.Purchase{}, errors.Wrapf(err, "decode purchase %s date", id)
	}

	return domain.Purchase{ID: id, AmountBTC: amountBTC, Price: p, Date: d}, nil
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
