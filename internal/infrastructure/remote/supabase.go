package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sony/gobreaker"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
)

// BreakerConfig tunes the circuit breaker guarding remote calls.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used in production.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// SupabaseStore implements Store over a Supabase (PostgREST) table. Every
// call runs through a circuit breaker so a misbehaving remote cannot pile up
// requests; a tripped breaker surfaces as a retryable CIRCUIT_OPEN error.
type SupabaseStore struct {
	client  *supabase.Client
	table   string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewSupabaseStore creates the adapter for the given table.
func NewSupabaseStore(client *supabase.Client, table string, cfg BreakerConfig, logger *zap.Logger) *SupabaseStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("remote")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "supabase-" + table,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &SupabaseStore{
		client:  client,
		table:   table,
		breaker: breaker,
		logger:  logger,
	}
}

// FindCurrent looks up the remote current row for (userID, fieldIdentifier).
func (s *SupabaseStore) FindCurrent(ctx context.Context, userID, fieldIdentifier string) (*Record, error) {
	raw, err := s.execute(ctx, "find_current", func() ([]byte, error) {
		data, _, err := s.client.From(s.table).
			Select("*", "", false).
			Eq("user_id", userID).
			Eq("field_identifier", fieldIdentifier).
			Eq("is_current", "true").
			Order("updated_at", &postgrest.OrderOpts{Ascending: false}).
			Execute()
		return data, err
	})
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, appErrors.Sync(appErrors.CodeRemoteFailed, "malformed remote response").
			WithUser(userID).WithField(fieldIdentifier).WithCause(err).Build()
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	if len(records) > 1 {
		// The remote invariant is one current row per lineage; take the
		// newest and flag the drift.
		s.logger.Warn("multiple current rows on remote",
			zap.String("userId", userID),
			zap.String("field", fieldIdentifier),
			zap.Int("count", len(records)))
	}
	return &records[0], nil
}

// Insert creates a new remote row.
func (s *SupabaseStore) Insert(ctx context.Context, record Record) error {
	_, err := s.execute(ctx, "insert", func() ([]byte, error) {
		_, _, err := s.client.From(s.table).
			Insert(record, false, "", "", "").
			Execute()
		return nil, err
	})
	return err
}

// Update replaces the remote row with the given id.
func (s *SupabaseStore) Update(ctx context.Context, id string, record Record) error {
	_, err := s.execute(ctx, "update", func() ([]byte, error) {
		_, _, err := s.client.From(s.table).
			Update(record, "", "").
			Eq("id", id).
			Execute()
		return nil, err
	})
	return err
}

// execute runs one remote call through the breaker and normalizes failures.
func (s *SupabaseStore) execute(ctx context.Context, op string, call func() ([]byte, error)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.Sync(appErrors.CodeRemoteFailed, "remote call aborted").
			WithOperation(op).WithCause(err).Build()
	}

	out, err := s.breaker.Execute(func() (any, error) {
		return call()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, appErrors.Sync(appErrors.CodeCircuitOpen, "remote circuit open").
				WithOperation(op).WithCause(err).Build()
		}
		return nil, appErrors.Sync(appErrors.CodeRemoteFailed, "remote call failed").
			WithOperation(op).WithCause(err).Build()
	}
	raw, _ := out.([]byte)
	return raw, nil
}
