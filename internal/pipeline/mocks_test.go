package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/apexlend/docpipeline/internal/domain"
	"github.com/apexlend/docpipeline/internal/infrastructure/objectstore"
	"github.com/apexlend/docpipeline/internal/infrastructure/ocr"
)

type MockApplicationChecker struct {
	mock.Mock
}

func NewMockApplicationChecker(t *testing.T) *MockApplicationChecker {
	m := &MockApplicationChecker{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockApplicationChecker) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockApplicationLister struct {
	mock.Mock
}

func NewMockApplicationLister(t *testing.T) *MockApplicationLister {
	m := &MockApplicationLister{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockApplicationLister) IDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)

	var ids []uuid.UUID
	if v := args.Get(0); v != nil {
		ids = v.([]uuid.UUID)
	}

	return ids, args.Error(1)
}

type MockDocumentCreator struct {
	mock.Mock
}

func NewMockDocumentCreator(t *testing.T) *MockDocumentCreator {
	m := &MockDocumentCreator{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockDocumentCreator) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

type MockDocumentStateStore struct {
	mock.Mock
}

func NewMockDocumentStateStore(t *testing.T) *MockDocumentStateStore {
	m := &MockDocumentStateStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockDocumentStateStore) ByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, id)

	var doc *domain.Document
	if v := args.Get(0); v != nil {
		doc = v.(*domain.Document)
	}

	return doc, args.Error(1)
}

func (m *MockDocumentStateStore) TransitionState(
	ctx context.Context,
	id uuid.UUID,
	from []domain.State,
	to domain.State,
) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockDocumentStateStore) MarkOcrComplete(ctx context.Context, id uuid.UUID, fields *domain.StatementFields) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockDocumentStateStore) MarkOcrFailed(ctx context.Context, id uuid.UUID, lastError string, nextRetryAt *time.Time) error {
	args := m.Called(ctx, id, lastError, nextRetryAt)
	return args.Error(0)
}

func (m *MockDocumentStateStore) ResetOcrAttempts(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockDocumentLister struct {
	mock.Mock
}

func NewMockDocumentLister(t *testing.T) *MockDocumentLister {
	m := &MockDocumentLister{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockDocumentLister) AllByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.Document, error) {
	args := m.Called(ctx, applicationID)

	var docs []*domain.Document
	if v := args.Get(0); v != nil {
		docs = v.([]*domain.Document)
	}

	return docs, args.Error(1)
}

type MockRetryLister struct {
	mock.Mock
}

func NewMockRetryLister(t *testing.T) *MockRetryLister {
	m := &MockRetryLister{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockRetryLister) RetryDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)

	var ids []uuid.UUID
	if v := args.Get(0); v != nil {
		ids = v.([]uuid.UUID)
	}

	return ids, args.Error(1)
}

func (m *MockRetryLister) StaleUploaded(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, olderThan)

	var ids []uuid.UUID
	if v := args.Get(0); v != nil {
		ids = v.([]uuid.UUID)
	}

	return ids, args.Error(1)
}

type MockAnalysisUpserter struct {
	mock.Mock
}

func NewMockAnalysisUpserter(t *testing.T) *MockAnalysisUpserter {
	m := &MockAnalysisUpserter{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockAnalysisUpserter) Upsert(ctx context.Context, analysis *domain.BankingAnalysis) error {
	args := m.Called(ctx, analysis)
	return args.Error(0)
}

type MockPolicyProvider struct {
	mock.Mock
}

func NewMockPolicyProvider(t *testing.T) *MockPolicyProvider {
	m := &MockPolicyProvider{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockPolicyProvider) EnabledPolicies(ctx context.Context) ([]*domain.RetentionPolicy, error) {
	args := m.Called(ctx)

	var policies []*domain.RetentionPolicy
	if v := args.Get(0); v != nil {
		policies = v.([]*domain.RetentionPolicy)
	}

	return policies, args.Error(1)
}

type MockExpiredDeleter struct {
	mock.Mock
}

func NewMockExpiredDeleter(t *testing.T) *MockExpiredDeleter {
	m := &MockExpiredDeleter{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockExpiredDeleter) DeleteExpired(
	ctx context.Context,
	table string,
	cutoff time.Time,
	filterSQL string,
	now time.Time,
) (int64, error) {
	args := m.Called(ctx, table, cutoff, filterSQL, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func NewMockProvider(t *testing.T) *MockProvider {
	m := &MockProvider{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockProvider) Extract(ctx context.Context, req ocr.Request) (*domain.StatementFields, error) {
	args := m.Called(ctx, req)

	var fields *domain.StatementFields
	if v := args.Get(0); v != nil {
		fields = v.(*domain.StatementFields)
	}

	return fields, args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func NewMockStore(t *testing.T) *MockStore {
	m := &MockStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockStore) Head(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(objectstore.ObjectInfo), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// passthroughTxm runs the callback without a real transaction.
type passthroughTxm struct{}

func (passthroughTxm) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
