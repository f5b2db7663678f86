package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"Areopagus/internal/domain/models"
	domrepo "Areopagus/internal/domain/repository"
	applogger "Areopagus/pkg/logger"
)

const DefaultDecisionTable = "council_decisions"

// DecisionSchema returns the DDL for the audit table.
func DecisionSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id           String,
            ts           DateTime64(3, 'UTC'),
            created_at   DateTime64(3, 'UTC'),
            symbol       LowCardinality(String),
            side         LowCardinality(String),
            price        Float64,
            confidence   Float64,
            method       LowCardinality(String),
            regime       LowCardinality(String),
            strategy     String,
            volatility   Float64,
            breakdown    String,
            votes        String,
            approved     UInt8,
            reason       String,
            stage        LowCardinality(String),
            amount       Float64
        ) ENGINE = MergeTree
        ORDER BY (symbol, ts)
    `, table)}
}

// CHDecisionStore writes the decision audit trail to ClickHouse.
type CHDecisionStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.DecisionStore = (*CHDecisionStore)(nil)

func NewCHDecisionStore(db *sql.DB, table string) *CHDecisionStore {
	if table == "" {
		table = DefaultDecisionTable
	}
	return &CHDecisionStore{db: db, table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHDecisionStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHDecisionStore) insertQuery() string {
	return fmt.Sprintf(`INSERT INTO %s (id, ts, created_at, symbol, side, price, confidence, method, regime, strategy, volatility, breakdown, votes, approved, reason, stage, amount)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
}

// decisionArgs flattens a record into insert arguments in column order.
func decisionArgs(rec *models.DecisionRecord) ([]interface{}, error) {
	d := rec.Decision
	if d == nil {
		return nil, fmt.Errorf("decision record %s has no decision", rec.ID)
	}
	breakdown, err := json.Marshal(d.VoteBreakdown)
	if err != nil {
		return nil, fmt.Errorf("encode breakdown: %w", err)
	}
	votes, err := json.Marshal(d.AgentVotes)
	if err != nil {
		return nil, fmt.Errorf("encode votes: %w", err)
	}
	var approved uint8
	if rec.Approved {
		approved = 1
	}
	return []interface{}{
		rec.ID,
		d.Timestamp.UTC(),
		rec.CreatedAt.UTC(),
		d.Symbol,
		string(d.Side),
		d.Price,
		d.Confidence,
		string(d.VotingMethod),
		d.Regime,
		d.Strategy,
		d.Volatility,
		string(breakdown),
		string(votes),
		approved,
		rec.Reason,
		string(rec.Stage),
		rec.Amount,
	}, nil
}

func (s *CHDecisionStore) StoreDecision(ctx context.Context, rec *models.DecisionRecord) error {
	args, err := decisionArgs(rec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.insertQuery(), args...); err != nil {
		s.l.Error("clickhouse store_decision error",
			applogger.String("table", s.table),
			applogger.String("id", rec.ID),
			applogger.Error(err),
		)
		return fmt.Errorf("store decision: %w", err)
	}
	return nil
}

func (s *CHDecisionStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool is owned by pkg/clickhouse.
func (s *CHDecisionStore) Close() error {
	return nil
}

// MemoryDecisionStore keeps records in process. Used by replay and tests.
type MemoryDecisionStore struct {
	mu      sync.Mutex
	records []models.DecisionRecord
}

var _ domrepo.DecisionStore = (*MemoryDecisionStore)(nil)

func NewMemoryDecisionStore() *MemoryDecisionStore {
	return &MemoryDecisionStore{}
}

func (s *MemoryDecisionStore) StoreDecision(_ context.Context, rec *models.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *MemoryDecisionStore) Records() []models.DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DecisionRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *MemoryDecisionStore) Health(context.Context) error { return nil }
func (s *MemoryDecisionStore) Close() error                 { return nil }
