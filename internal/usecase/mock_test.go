//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/adapter"
	"bookstore-payments/internal/domain/ports/repository"
	"bookstore-payments/internal/usecase"
)

// =============================
// Repositories
// =============================

// ---- Mock PurchaseRepository ----

type MockPurchaseRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.Purchase
	byRef   map[string]string // transaction ref -> id
	byToken map[string]string // initiation token -> id

	CreateFunc         func(ctx context.Context, tx repository.Tx, p *model.Purchase) error
	FindByIDFunc       func(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error)
	UpdateStatusIfFunc func(ctx context.Context, tx repository.Tx, id string, from, to model.PurchaseStatus, fields *repository.StatusFields) (bool, error)
	ListPendingFunc    func(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Purchase, int, error)

	Calls struct {
		Create         int
		UpdateStatusIf []struct{ From, To model.PurchaseStatus }
	}
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func NewMockPurchaseRepo() *MockPurchaseRepo {
	return &MockPurchaseRepo{
		byID:    map[string]*model.Purchase{},
		byRef:   map[string]string{},
		byToken: map[string]string{},
	}
}

func (r *MockPurchaseRepo) Create(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	r.mu.Lock()
	r.Calls.Create++
	r.mu.Unlock()
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[p.TransactionRef]; ok {
		return domain.ErrAlreadyExists
	}
	for _, q := range r.byID {
		if q.UserID == p.UserID && q.ItemType == p.ItemType && q.ItemID == p.ItemID && !q.Status.IsTerminal() {
			return domain.ErrDuplicatePurchase
		}
	}
	cp := *p
	if cp.ID == "" {
		cp.ID = uuid.NewString()
		p.ID = cp.ID
	}
	r.byID[cp.ID] = &cp
	r.byRef[cp.TransactionRef] = cp.ID
	r.byToken[cp.InitiationToken] = cp.ID
	return nil
}

func (r *MockPurchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPurchaseRepo) FindByTransactionRef(ctx context.Context, tx repository.Tx, ref string) (*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byRef[ref]; ok {
		cp := *r.byID[id]
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPurchaseRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byToken[token]; ok {
		cp := *r.byID[id]
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPurchaseRepo) FindActiveByUserAndItem(ctx context.Context, tx repository.Tx, userID string, itemType model.ItemType, itemID string) (*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.UserID == userID && p.ItemType == itemType && p.ItemID == itemID && !p.Status.IsTerminal() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPurchaseRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.PurchaseStatus, fields *repository.StatusFields) (bool, error) {
	r.mu.Lock()
	r.Calls.UpdateStatusIf = append(r.Calls.UpdateStatusIf, struct{ From, To model.PurchaseStatus }{from, to})
	r.mu.Unlock()
	if r.UpdateStatusIfFunc != nil {
		return r.UpdateStatusIfFunc(ctx, tx, id, from, to, fields)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	if fields != nil {
		if fields.ProviderRef != nil {
			p.ProviderRef = fields.ProviderRef
		}
		if fields.TelegramChatID != nil {
			p.TelegramChatID = fields.TelegramChatID
		}
		if fields.TelegramUserID != nil {
			p.TelegramUserID = fields.TelegramUserID
		}
		if fields.ReviewerNotes != nil {
			p.ReviewerNotes = fields.ReviewerNotes
		}
		if fields.ReviewedAt != nil {
			p.ReviewedAt = fields.ReviewedAt
		}
	}
	return true, nil
}

func (r *MockPurchaseRepo) ListPending(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Purchase, int, error) {
	if r.ListPendingFunc != nil {
		return r.ListPendingFunc(ctx, tx, offset, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Purchase
	for _, p := range r.byID {
		if p.Status == model.PurchaseStatusPendingVerification {
			cp := *p
			out = append(out, &cp)
		}
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *MockPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Purchase
	for _, p := range r.byID {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock SubmissionRepository ----

type MockSubmissionRepo struct {
	mu   sync.Mutex
	data map[string]*model.PaymentSubmission

	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.PaymentSubmission) error
}

var _ repository.SubmissionRepository = (*MockSubmissionRepo)(nil)

func NewMockSubmissionRepo() *MockSubmissionRepo {
	return &MockSubmissionRepo{data: map[string]*model.PaymentSubmission{}}
}

func (r *MockSubmissionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSubmission) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockSubmissionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.data[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubmissionRepo) ListByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) ([]*model.PaymentSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentSubmission
	for _, s := range r.data {
		if s.PurchaseID == purchaseID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockSubmissionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubmissionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return nil
}

// ---- Mock ItemRepository ----

type MockItemRepo struct {
	mu      sync.Mutex
	items   map[string]*model.Item // key: type/id
	bundles map[string][]string    // bundle id -> book ids

	FindByTypeAndIDFunc func(ctx context.Context, tx repository.Tx, itemType model.ItemType, id string) (*model.Item, error)
	BundleBookIDsFunc   func(ctx context.Context, tx repository.Tx, bundleID string) ([]string, error)
}

var _ repository.ItemRepository = (*MockItemRepo)(nil)

func NewMockItemRepo() *MockItemRepo {
	return &MockItemRepo{items: map[string]*model.Item{}, bundles: map[string][]string{}}
}

func (r *MockItemRepo) seed(it *model.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[string(it.Type)+"/"+it.ID] = it
}

func (r *MockItemRepo) seedBundle(it *model.Item, bookIDs []string) {
	r.seed(it)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[it.ID] = bookIDs
}

func (r *MockItemRepo) FindByTypeAndID(ctx context.Context, tx repository.Tx, itemType model.ItemType, id string) (*model.Item, error) {
	if r.FindByTypeAndIDFunc != nil {
		return r.FindByTypeAndIDFunc(ctx, tx, itemType, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if it, ok := r.items[string(itemType)+"/"+id]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockItemRepo) BundleBookIDs(ctx context.Context, tx repository.Tx, bundleID string) ([]string, error) {
	if r.BundleBookIDsFunc != nil {
		return r.BundleBookIDsFunc(ctx, tx, bundleID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids, ok := r.bundles[bundleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]string(nil), ids...), nil
}

// ---- Mock LibraryRepository ----

type MockLibraryRepo struct {
	mu   sync.Mutex
	data map[string]*model.LibraryEntry // key: user/book

	CreateFunc         func(ctx context.Context, tx repository.Tx, e *model.LibraryEntry) error
	UpsertFunc         func(ctx context.Context, tx repository.Tx, e *model.LibraryEntry) error
	UpdateProgressFunc func(ctx context.Context, tx repository.Tx, userID, bookID string, progress float64, status model.LibraryStatus) error
}

var _ repository.LibraryRepository = (*MockLibraryRepo)(nil)

func NewMockLibraryRepo() *MockLibraryRepo {
	return &MockLibraryRepo{data: map[string]*model.LibraryEntry{}}
}

func libKey(userID, bookID string) string { return userID + "/" + bookID }

func (r *MockLibraryRepo) Create(ctx context.Context, tx repository.Tx, e *model.LibraryEntry) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := libKey(e.UserID, e.BookID)
	if _, ok := r.data[k]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *e
	r.data[k] = &cp
	return nil
}

func (r *MockLibraryRepo) Upsert(ctx context.Context, tx repository.Tx, e *model.LibraryEntry) error {
	if r.UpsertFunc != nil {
		return r.UpsertFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := libKey(e.UserID, e.BookID)
	if _, ok := r.data[k]; ok {
		return nil
	}
	cp := *e
	r.data[k] = &cp
	return nil
}

func (r *MockLibraryRepo) FindByUserAndBook(ctx context.Context, tx repository.Tx, userID, bookID string) (*model.LibraryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.data[libKey(userID, bookID)]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockLibraryRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.LibraryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.LibraryEntry
	for _, e := range r.data {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockLibraryRepo) UpdateProgress(ctx context.Context, tx repository.Tx, userID, bookID string, progress float64, status model.LibraryStatus) error {
	if r.UpdateProgressFunc != nil {
		return r.UpdateProgressFunc(ctx, tx, userID, bookID, progress, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.data[libKey(userID, bookID)]
	if !ok {
		return domain.ErrNotFound
	}
	e.Progress = progress
	e.Status = status
	return nil
}

// ---- Mock ProfileRepository ----

type MockProfileRepo struct {
	mu   sync.Mutex
	data map[string]*model.Profile

	FindRoleFunc func(ctx context.Context, tx repository.Tx, userID string) (model.Role, error)
}

var _ repository.ProfileRepository = (*MockProfileRepo)(nil)

func NewMockProfileRepo() *MockProfileRepo {
	return &MockProfileRepo{data: map[string]*model.Profile{}}
}

func (r *MockProfileRepo) seed(p *model.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[p.UserID] = p
}

func (r *MockProfileRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockProfileRepo) FindRole(ctx context.Context, tx repository.Tx, userID string) (model.Role, error) {
	if r.FindRoleFunc != nil {
		return r.FindRoleFunc(ctx, tx, userID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[userID]; ok {
		return p.Role, nil
	}
	return model.RoleUser, nil
}

// ---- Mock PaymentRequestRepository ----

type MockPaymentRequestRepo struct {
	mu   sync.Mutex
	data map[string]*model.PaymentRequest

	SaveFunc           func(ctx context.Context, tx repository.Tx, r *model.PaymentRequest) error
	UpdateStatusIfFunc func(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentRequestStatus) (bool, error)
}

var _ repository.PaymentRequestRepository = (*MockPaymentRequestRepo)(nil)

func NewMockPaymentRequestRepo() *MockPaymentRequestRepo {
	return &MockPaymentRequestRepo{data: map[string]*model.PaymentRequest{}}
}

func (r *MockPaymentRequestRepo) Save(ctx context.Context, tx repository.Tx, req *model.PaymentRequest) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, req)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.data[cp.ID] = &cp
	return nil
}

func (r *MockPaymentRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req, ok := r.data[id]; ok {
		cp := *req
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRequestRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.PaymentRequestStatus, offset, limit int) ([]*model.PaymentRequest, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentRequest
	for _, req := range r.data {
		if req.Status == status {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r *MockPaymentRequestRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentRequestStatus) (bool, error) {
	if r.UpdateStatusIfFunc != nil {
		return r.UpdateStatusIfFunc(ctx, tx, id, from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.data[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	req.UpdatedAt = time.Now()
	return true, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx defaults to running fn with a nil Tx; mocks ignore the handle anyway.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Mock FulfillmentUseCase ----

type MockFulfillment struct {
	mu      sync.Mutex
	Granted []struct {
		UserID string
		Type   model.ItemType
		ItemID string
	}

	GrantAccessFunc func(ctx context.Context, userID string, itemType model.ItemType, itemID string) error
}

var _ usecase.FulfillmentUseCase = (*MockFulfillment)(nil)

func (m *MockFulfillment) GrantAccess(ctx context.Context, userID string, itemType model.ItemType, itemID string) error {
	if m.GrantAccessFunc != nil {
		return m.GrantAccessFunc(ctx, userID, itemType, itemID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Granted = append(m.Granted, struct {
		UserID string
		Type   model.ItemType
		ItemID string
	}{userID, itemType, itemID})
	return nil
}

// =============================
// Adapters
// =============================

// ---- Mock AdminNotifier ----

type MockNotifier struct {
	mu   sync.Mutex
	Sent []string

	NotifyAdminsFunc func(ctx context.Context, text string) error
}

var _ adapter.AdminNotifier = (*MockNotifier)(nil)

func (m *MockNotifier) NotifyAdmins(ctx context.Context, text string) error {
	if m.NotifyAdminsFunc != nil {
		return m.NotifyAdminsFunc(ctx, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, text)
	return nil
}

// ---- Mock Mailer ----

type MockMailer struct {
	mu   sync.Mutex
	Sent []struct{ To, Subject string }

	SendFunc func(ctx context.Context, to, subject, htmlBody string) error
}

var _ adapter.Mailer = (*MockMailer)(nil)

func (m *MockMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, htmlBody)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, struct{ To, Subject string }{to, subject})
	return nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
