package pipeline_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/pipeline"
	"github.com/apexlend/docpipeline/internal/repository/postgresql"
)

func newSweeper(
	t *testing.T,
	policies *MockPolicyProvider,
	deleter *MockExpiredDeleter,
	interval time.Duration,
) *pipeline.Sweeper {
	t.Helper()

	return pipeline.NewSweeper(
		slog.New(slog.DiscardHandler),
		policies,
		deleter,
		interval,
		time.Minute,
	)
}

func TestSweeper_SweepOnce_HappyPath(t *testing.T) {
	t.Parallel()

	policy := &domain.RetentionPolicy{
		Target:  postgresql.TableDocuments,
		Days:    90,
		Enabled: true,
	}

	policies := NewMockPolicyProvider(t)
	policies.On("EnabledPolicies", mock.Anything).Return([]*domain.RetentionPolicy{policy}, nil)

	before := time.Now()

	deleter := NewMockExpiredDeleter(t)
	deleter.On("DeleteExpired",
		mock.Anything,
		postgresql.TableDocuments,
		mock.MatchedBy(func(cutoff time.Time) bool {
			expected := before.AddDate(0, 0, -90)
			return cutoff.After(expected.Add(-time.Minute)) && cutoff.Before(expected.Add(time.Minute))
		}),
		"",
		mock.Anything,
	).Return(int64(12), nil)

	sweeper := newSweeper(t, policies, deleter, time.Hour)

	results, err := sweeper.SweepOnce(t.Context())
	require.NoError(t, err)

	require.Contains(t, results, postgresql.TableDocuments)
	assert.Equal(t, int64(12), results[postgresql.TableDocuments].Deleted)
	assert.Empty(t, results[postgresql.TableDocuments].Error)
}

func TestSweeper_SweepOnce_UnknownTargetIsolated(t *testing.T) {
	t.Parallel()

	misconfigured := &domain.RetentionPolicy{Target: "audit_logs", Days: 30, Enabled: true}
	valid := &domain.RetentionPolicy{Target: postgresql.TableAnalyses, Days: 365, Enabled: true}

	policies := NewMockPolicyProvider(t)
	policies.On("EnabledPolicies", mock.Anything).
		Return([]*domain.RetentionPolicy{misconfigured, valid}, nil)

	deleter := NewMockExpiredDeleter(t)
	deleter.On("DeleteExpired",
		mock.Anything, postgresql.TableAnalyses, mock.Anything, "", mock.Anything,
	).Return(int64(3), nil)

	sweeper := newSweeper(t, policies, deleter, time.Hour)

	results, err := sweeper.SweepOnce(t.Context())
	require.NoError(t, err)

	require.Contains(t, results, "audit_logs")
	assert.Equal(t, "Unknown target: audit_logs", results["audit_logs"].Error)
	assert.Zero(t, results["audit_logs"].Deleted)

	// The valid policy still ran.
	require.Contains(t, results, postgresql.TableAnalyses)
	assert.Equal(t, int64(3), results[postgresql.TableAnalyses].Deleted)
	assert.Empty(t, results[postgresql.TableAnalyses].Error)
}

func TestSweeper_SweepOnce_PolicyTimeout(t *testing.T) {
	t.Parallel()

	policy := &domain.RetentionPolicy{Target: postgresql.TableDocuments, Days: 90, Enabled: true}

	policies := NewMockPolicyProvider(t)
	policies.On("EnabledPolicies", mock.Anything).Return([]*domain.RetentionPolicy{policy}, nil)

	deleter := NewMockExpiredDeleter(t)
	deleter.On("DeleteExpired",
		mock.Anything, postgresql.TableDocuments, mock.Anything, "", mock.Anything,
	).Return(int64(0), context.DeadlineExceeded)

	sweeper := newSweeper(t, policies, deleter, time.Hour)

	results, err := sweeper.SweepOnce(t.Context())
	require.NoError(t, err)

	require.Contains(t, results, postgresql.TableDocuments)
	assert.True(t, results[postgresql.TableDocuments].TimedOut)
	assert.NotEmpty(t, results[postgresql.TableDocuments].Error)
}

func TestSweeper_SweepOnce_FilterPassedThrough(t *testing.T) {
	t.Parallel()

	policy := &domain.RetentionPolicy{
		Target:    postgresql.TableDocuments,
		Days:      30,
		FilterSQL: "documents.document_type = 'other'",
		Enabled:   true,
	}

	policies := NewMockPolicyProvider(t)
	policies.On("EnabledPolicies", mock.Anything).Return([]*domain.RetentionPolicy{policy}, nil)

	deleter := NewMockExpiredDeleter(t)
	deleter.On("DeleteExpired",
		mock.Anything, postgresql.TableDocuments, mock.Anything, policy.FilterSQL, mock.Anything,
	).Return(int64(1), nil)

	sweeper := newSweeper(t, policies, deleter, time.Hour)

	_, err := sweeper.SweepOnce(t.Context())
	require.NoError(t, err)
}

func TestSweeper_Run_TicksUntilCancelled(t *testing.T) {
	t.Parallel()

	swept := make(chan struct{}, 1)

	policies := NewMockPolicyProvider(t)
	policies.On("EnabledPolicies", mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		}).
		Return(nil, nil)

	deleter := NewMockExpiredDeleter(t)

	sweeper := newSweeper(t, policies, deleter, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- sweeper.Run(ctx)
	}()

	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Fatal("timeout: sweeper never ticked")
	}

	cancel()

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("timeout: sweeper did not stop on cancel")
	}
}
