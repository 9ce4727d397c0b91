package runlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// NewPool создаёт пул соединений с Postgres для журнала запусков.
//
// DSN берётся из переменной окружения RUNLOG_DB_URL либо из аргумента.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if env := os.Getenv("RUNLOG_DB_URL"); env != "" {
		dsn = env
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// PGLog — журнал запусков в Postgres.
//
// Используется при работе нескольких операторов с общим кластером:
// файл на shared-хранилище не даёт честного append-only порядка.
type PGLog struct {
	pool *pgxpool.Pool
}

// NewPGLog создаёт журнал поверх готового пула.
func NewPGLog(pool *pgxpool.Pool) *PGLog {
	return &PGLog{pool: pool}
}

// EnsureSchema создаёт таблицу журнала, если её ещё нет.
func (l *PGLog) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS stage_run_log (
			seq         BIGSERIAL PRIMARY KEY,
			run_id      UUID        NOT NULL,
			stage_id    TEXT        NOT NULL,
			outcome     TEXT        NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			error       TEXT
		);
		CREATE INDEX IF NOT EXISTS stage_run_log_stage_idx
			ON stage_run_log (stage_id, seq);
	`
	if _, err := l.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure runlog schema: %w", err)
	}
	return nil
}

// Append добавляет финализированную запись.
func (l *PGLog) Append(ctx context.Context, record *domain.RunRecord) error {
	if !record.Outcome.IsTerminal() {
		return fmt.Errorf("%w: stage %s", ErrNotFinalized, record.StageID)
	}

	query := `
		INSERT INTO stage_run_log (run_id, stage_id, outcome, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := l.pool.Exec(ctx, query,
		record.RunID,
		record.StageID,
		record.Outcome,
		record.StartedAt,
		record.FinishedAt,
		nullString(record.Error),
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// History возвращает записи stage'а в порядке добавления.
// Пустой stageID возвращает записи всех stage'ей.
func (l *PGLog) History(ctx context.Context, stageID string) ([]domain.RunRecord, error) {
	query := `
		SELECT run_id, stage_id, outcome, started_at, finished_at, COALESCE(error, '')
		FROM stage_run_log
		WHERE $1 = '' OR stage_id = $1
		ORDER BY seq
	`
	rows, err := l.pool.Query(ctx, query, stageID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		if err := rows.Scan(&rec.RunID, &rec.StageID, &rec.Outcome, &rec.StartedAt, &rec.FinishedAt, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastOutcome возвращает исход самой свежей записи stage'а.
func (l *PGLog) LastOutcome(ctx context.Context, stageID string) (domain.Outcome, error) {
	query := `
		SELECT outcome
		FROM stage_run_log
		WHERE stage_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`
	var outcome domain.Outcome
	err := l.pool.QueryRow(ctx, query, stageID).Scan(&outcome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrNoHistory, stageID)
		}
		return "", fmt.Errorf("query last outcome: %w", err)
	}
	return outcome, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
