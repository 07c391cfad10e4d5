// Package resilience guards outcome persistence with a circuit breaker so a
// failing store is shed quickly instead of stalling every recording call.
package resilience

import (
	"context"
	stderrors "errors"

	"github.com/sony/gobreaker"

	"github.com/turtacn/ExportReady-Intelligence/internal/config"
	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

const breakerName = "outcome_store"

// StateObserver is told about every breaker state change.
type StateObserver interface {
	SetBreakerState(name string, state int)
}

// OutcomeRepository is an export.OutcomeRepository that routes every call
// through a circuit breaker. While the breaker is open calls fail fast with
// ErrCodeOutcomeStoreTripped.
type OutcomeRepository struct {
	inner  export.OutcomeRepository
	cb     *gobreaker.CircuitBreaker
	logger logging.Logger
}

var _ export.OutcomeRepository = (*OutcomeRepository)(nil)

// NewOutcomeRepository wraps inner. observer may be nil.
func NewOutcomeRepository(inner export.OutcomeRepository, cfg config.BreakerConfig, observer StateObserver, log logging.Logger) *OutcomeRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("breaker")

	r := &OutcomeRepository{inner: inner, logger: log}
	r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logging.String("name", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
			if observer != nil {
				observer.SetBreakerState(name, int(to))
			}
		},
		IsSuccessful: countsAsSuccess,
	})
	if observer != nil {
		observer.SetBreakerState(breakerName, int(gobreaker.StateClosed))
	}
	return r
}

// countsAsSuccess keeps caller mistakes from tripping the breaker; only
// store failures count against it.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	return errors.IsValidation(err) || errors.IsNotFound(err) || stderrors.Is(err, context.Canceled)
}

// State reports the current breaker state.
func (r *OutcomeRepository) State() gobreaker.State { return r.cb.State() }

func (r *OutcomeRepository) Append(ctx context.Context, o *export.Outcome) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, r.inner.Append(ctx, o)
	})
	return r.translate(err, "append")
}

func (r *OutcomeRepository) FindSuccessfulByMarket(ctx context.Context, market string) ([]*export.Outcome, error) {
	res, err := r.cb.Execute(func() (interface{}, error) {
		return r.inner.FindSuccessfulByMarket(ctx, market)
	})
	if err != nil {
		return nil, r.translate(err, "find_successful_by_market")
	}
	return res.([]*export.Outcome), nil
}

func (r *OutcomeRepository) FindByBusinessID(ctx context.Context, businessID string) ([]*export.Outcome, error) {
	res, err := r.cb.Execute(func() (interface{}, error) {
		return r.inner.FindByBusinessID(ctx, businessID)
	})
	if err != nil {
		return nil, r.translate(err, "find_by_business_id")
	}
	return res.([]*export.Outcome), nil
}

func (r *OutcomeRepository) translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		r.logger.Debug("outcome store call rejected", logging.String("op", op), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeOutcomeStoreTripped, "outcome store unavailable").WithDetail("op=" + op)
	}
	return err
}
