package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loom-erp/loom-erp/internal/account"
	jobmetrics "github.com/loom-erp/loom-erp/internal/jobs"
)

// LedgerIntegrityJob re-derives the cached product stocks and account
// balances from their transaction logs and repairs any drift. The logs are
// the system of record, so the sweep is idempotent.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the integrity sweep handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting ledger integrity sweep")

	stockFixed, err := j.repairStocks(ctx)
	if err != nil {
		resultErr = err
		logger.Error("stock repair failed", slog.Any("error", err))
		return resultErr
	}
	balanceFixed, err := j.repairBalances(ctx)
	if err != nil {
		resultErr = err
		logger.Error("balance repair failed", slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddDrift("stock", stockFixed)
	j.metrics().AddDrift("balance", balanceFixed)
	logger.Info("ledger integrity sweep finished",
		slog.Int64("stocks_repaired", stockFixed),
		slog.Int64("balances_repaired", balanceFixed),
	)
	return nil
}

func (j *LedgerIntegrityJob) repairStocks(ctx context.Context) (int64, error) {
	tag, err := j.Pool.Exec(ctx, `WITH sums AS (
	SELECT p.id, COALESCE(SUM(st.quantity * st.direction), 0) AS total
	FROM products p
	LEFT JOIN stock_transactions st ON st.product_id = p.id AND st.shop_id = p.shop_id
	GROUP BY p.id
)
UPDATE products p SET stock = s.total
FROM sums s
WHERE p.id = s.id AND p.stock <> s.total`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (j *LedgerIntegrityJob) repairBalances(ctx context.Context) (int64, error) {
	debits := account.DebitTypes()
	quoted := make([]string, len(debits))
	for i, d := range debits {
		quoted[i] = "'" + string(d) + "'"
	}
	tag, err := j.Pool.Exec(ctx, `WITH sums AS (
	SELECT a.id, COALESCE(SUM(CASE WHEN t.type IN (`+strings.Join(quoted, ",")+`) THEN t.amount ELSE -t.amount END), 0) AS total
	FROM accounts a
	LEFT JOIN transactions t ON t.account_id = a.id AND t.shop_id = a.shop_id
	GROUP BY a.id
)
UPDATE accounts a SET balance = a.opening_balance + s.total
FROM sums s
WHERE a.id = s.id AND a.balance <> a.opening_balance + s.total`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
