package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/repository/postgresql"
)

// Sweeper enforces retention policy on a schedule. Each policy runs under
// its own timeout and its own error budget: one misconfigured or slow
// policy never blocks the others. Deletes are predicate-based, so repeated
// or overlapping sweeps are harmless.
type Sweeper struct {
	log           *slog.Logger
	policies      PolicyProvider
	deleter       ExpiredDeleter
	interval      time.Duration
	policyTimeout time.Duration
	targets       map[string]struct{}
	now           func() time.Time
}

func NewSweeper(
	log *slog.Logger,
	policies PolicyProvider,
	deleter ExpiredDeleter,
	interval time.Duration,
	policyTimeout time.Duration,
) *Sweeper {
	return &Sweeper{
		log:           log,
		policies:      policies,
		deleter:       deleter,
		interval:      interval,
		policyTimeout: policyTimeout,
		targets: map[string]struct{}{
			postgresql.TableDocuments: {},
			postgresql.TableAnalyses:  {},
		},
		now: time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.log.DebugContext(ctx, "retention sweep started")

			results, err := s.SweepOnce(ctx)
			if err != nil {
				s.log.ErrorContext(ctx, "failed to sweep", slog.String("err", err.Error()))
				continue
			}

			for target, result := range results {
				s.log.InfoContext(ctx, "retention sweep result",
					slog.String("target", target),
					slog.Int64("deleted", result.Deleted),
					slog.String("error", result.Error),
					slog.Bool("timed_out", result.TimedOut),
				)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SweepOnce applies every enabled policy once and reports per-target results.
func (s *Sweeper) SweepOnce(ctx context.Context) (map[string]domain.SweepResult, error) {
	policies, err := s.policies.EnabledPolicies(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]domain.SweepResult, len(policies))
	for _, policy := range policies {
		results[policy.Target] = s.sweepPolicy(ctx, policy)
	}

	return results, nil
}

func (s *Sweeper) sweepPolicy(ctx context.Context, policy *domain.RetentionPolicy) domain.SweepResult {
	if _, ok := s.targets[policy.Target]; !ok {
		err := &domain.UnknownTargetError{Target: policy.Target}

		s.log.ErrorContext(ctx, "retention policy misconfigured",
			slog.String("target", policy.Target),
			slog.String("err", err.Error()),
		)

		return domain.SweepResult{Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, s.policyTimeout)
	defer cancel()

	now := s.now()

	deleted, err := s.deleter.DeleteExpired(ctx, policy.Target, policy.Cutoff(now), policy.FilterSQL, now)
	if errors.Is(err, context.DeadlineExceeded) {
		// Abandoned for this run; the next scheduled sweep retries.
		return domain.SweepResult{Deleted: deleted, Error: err.Error(), TimedOut: true}
	}
	if err != nil {
		return domain.SweepResult{Deleted: deleted, Error: err.Error()}
	}

	return domain.SweepResult{Deleted: deleted}
}
