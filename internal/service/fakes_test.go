package service

import (
	"context"
	"sync"
	"time"

	"github.com/bandmail/warmup-engine/internal/domain"
	"github.com/bandmail/warmup-engine/internal/provider"
	"github.com/bandmail/warmup-engine/internal/queue"
	"github.com/bandmail/warmup-engine/internal/ratelimit"
	"github.com/bandmail/warmup-engine/internal/repository"
)

type fakeCampaignRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Campaign, error)
	saveFn    func(ctx context.Context, c *domain.Campaign) error
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCampaignRepo) Save(ctx context.Context, c *domain.Campaign) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, c)
	}
	return nil
}

var _ repository.CampaignRepository = (*fakeCampaignRepo)(nil)

// memCampaignRepo stores campaigns in memory and enforces the version check
// the SQL save performs.
type memCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[string]domain.Campaign
}

func newMemCampaignRepo(campaigns ...*domain.Campaign) *memCampaignRepo {
	repo := &memCampaignRepo{campaigns: make(map[string]domain.Campaign)}
	for _, c := range campaigns {
		repo.campaigns[c.ID] = *c
	}
	return repo
}

func (m *memCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *memCampaignRepo) Save(ctx context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.campaigns[c.ID]
	if !ok || stored.Version != c.Version {
		return domain.ErrConflict
	}
	c.Version++
	m.campaigns[c.ID] = *c
	return nil
}

func (m *memCampaignRepo) get(id string) domain.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id]
}

var _ repository.CampaignRepository = (*memCampaignRepo)(nil)

type fakeContactRepo struct {
	countForListFn          func(ctx context.Context, listID string) (int64, error)
	findUnsentForCampaignFn func(ctx context.Context, campaignID string, listID string, offset int, limit int) ([]domain.Contact, error)
}

func (f *fakeContactRepo) CountForList(ctx context.Context, listID string) (int64, error) {
	if f.countForListFn != nil {
		return f.countForListFn(ctx, listID)
	}
	return 0, nil
}

func (f *fakeContactRepo) FindUnsentForCampaign(ctx context.Context, campaignID string, listID string, offset int, limit int) ([]domain.Contact, error) {
	if f.findUnsentForCampaignFn != nil {
		return f.findUnsentForCampaignFn(ctx, campaignID, listID, offset, limit)
	}
	return nil, nil
}

var _ repository.ContactRepository = (*fakeContactRepo)(nil)

type fakeSendRecordRepo struct {
	createFn                  func(ctx context.Context, r *domain.SendRecord) error
	findByProviderMessageIDFn func(ctx context.Context, providerMessageID string) (*domain.SendRecord, error)
	updateEventStateFn        func(ctx context.Context, id string, update domain.SendRecordUpdate) error
	countByCampaignFn         func(ctx context.Context, campaignID string) (repository.SendCounts, error)
}

func (f *fakeSendRecordRepo) Create(ctx context.Context, r *domain.SendRecord) error {
	if f.createFn != nil {
		return f.createFn(ctx, r)
	}
	return nil
}

func (f *fakeSendRecordRepo) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.SendRecord, error) {
	if f.findByProviderMessageIDFn != nil {
		return f.findByProviderMessageIDFn(ctx, providerMessageID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSendRecordRepo) UpdateEventState(ctx context.Context, id string, update domain.SendRecordUpdate) error {
	if f.updateEventStateFn != nil {
		return f.updateEventStateFn(ctx, id, update)
	}
	return nil
}

func (f *fakeSendRecordRepo) CountByCampaign(ctx context.Context, campaignID string) (repository.SendCounts, error) {
	if f.countByCampaignFn != nil {
		return f.countByCampaignFn(ctx, campaignID)
	}
	return repository.SendCounts{}, nil
}

var _ repository.SendRecordRepository = (*fakeSendRecordRepo)(nil)

// memSendRecordRepo keeps records in memory and applies updates with the same
// rules the SQL update enforces.
type memSendRecordRepo struct {
	mu      sync.Mutex
	records map[string]domain.SendRecord
}

func newMemSendRecordRepo(records ...domain.SendRecord) *memSendRecordRepo {
	repo := &memSendRecordRepo{records: make(map[string]domain.SendRecord)}
	for _, r := range records {
		repo.records[r.ID] = r
	}
	return repo
}

func (m *memSendRecordRepo) Create(ctx context.Context, r *domain.SendRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = *r
	return nil
}

func (m *memSendRecordRepo) FindByProviderMessageID(ctx context.Context, providerMessageID string) (*domain.SendRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ProviderMessageID != nil && *r.ProviderMessageID == providerMessageID {
			found := r
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSendRecordRepo) UpdateEventState(ctx context.Context, id string, update domain.SendRecordUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.records[id] = r.Apply(update)
	return nil
}

func (m *memSendRecordRepo) CountByCampaign(ctx context.Context, campaignID string) (repository.SendCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var counts repository.SendCounts
	for _, r := range m.records {
		if r.CampaignID != campaignID {
			continue
		}
		if r.Status == domain.SendStatusFailed {
			counts.Failed++
		} else {
			counts.Sent++
		}
	}
	return counts, nil
}

func (m *memSendRecordRepo) get(id string) domain.SendRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

type fakeEmailEventRepo struct {
	createFn func(ctx context.Context, e *domain.EmailEvent) error
}

func (f *fakeEmailEventRepo) Create(ctx context.Context, e *domain.EmailEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, e)
	}
	return nil
}

var _ repository.EmailEventRepository = (*fakeEmailEventRepo)(nil)

type fakeQuotaRepo struct {
	getFn          func(ctx context.Context, userID string) (*domain.QuotaRecord, error)
	updateFn       func(ctx context.Context, seed domain.QuotaRecord, mutate repository.QuotaMutation) (domain.QuotaRecord, error)
	resetElapsedFn func(ctx context.Context, periodStart time.Time) (int64, error)
}

func (f *fakeQuotaRepo) Get(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	if f.getFn != nil {
		return f.getFn(ctx, userID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeQuotaRepo) Update(ctx context.Context, seed domain.QuotaRecord, mutate repository.QuotaMutation) (domain.QuotaRecord, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, seed, mutate)
	}
	return mutate(seed)
}

func (f *fakeQuotaRepo) ResetElapsed(ctx context.Context, periodStart time.Time) (int64, error) {
	if f.resetElapsedFn != nil {
		return f.resetElapsedFn(ctx, periodStart)
	}
	return 0, nil
}

var _ repository.QuotaRepository = (*fakeQuotaRepo)(nil)

// memQuotaRepo serializes Update with a mutex the way the row lock does.
type memQuotaRepo struct {
	mu      sync.Mutex
	records map[string]domain.QuotaRecord
}

func newMemQuotaRepo(records ...domain.QuotaRecord) *memQuotaRepo {
	repo := &memQuotaRepo{records: make(map[string]domain.QuotaRecord)}
	for _, r := range records {
		repo.records[r.UserID] = r
	}
	return repo
}

func (m *memQuotaRepo) Get(ctx context.Context, userID string) (*domain.QuotaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *memQuotaRepo) Update(ctx context.Context, seed domain.QuotaRecord, mutate repository.QuotaMutation) (domain.QuotaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[seed.UserID]
	if !ok {
		current = seed
	}
	next, err := mutate(current)
	if err != nil {
		return next, err
	}
	m.records[seed.UserID] = next
	return next, nil
}

func (m *memQuotaRepo) ResetElapsed(ctx context.Context, periodStart time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.records {
		if r.LastResetDate.Before(periodStart) {
			r.EmailsSentToday = 0
			r.LastResetDate = periodStart
			m.records[id] = r
			n++
		}
	}
	return n, nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, msg queue.EmailEventMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.EmailEventMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

var _ queue.Publisher = (*fakePublisher)(nil)

type fakeMailer struct {
	sendFn func(ctx context.Context, email provider.OutboundEmail) (*provider.SendResult, error)
}

func (f *fakeMailer) Name() string { return "resend" }

func (f *fakeMailer) Send(ctx context.Context, email provider.OutboundEmail) (*provider.SendResult, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, email)
	}
	return &provider.SendResult{StatusCode: 200, MessageID: "msg-" + email.To}, nil
}

var _ provider.Mailer = (*fakeMailer)(nil)

type fakeThrottle struct {
	allowFn func(ctx context.Context, provider string) (bool, error)
	waitFn  func(ctx context.Context, provider string) error
}

func (f *fakeThrottle) Allow(ctx context.Context, provider string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, provider)
	}
	return true, nil
}

func (f *fakeThrottle) Wait(ctx context.Context, provider string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, provider)
	}
	return nil
}

var _ ratelimit.Throttle = (*fakeThrottle)(nil)

type fakeLocker struct {
	acquireFn func(ctx context.Context, campaignID string) (func(context.Context) error, error)
}

func (f *fakeLocker) Acquire(ctx context.Context, campaignID string) (func(context.Context) error, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, campaignID)
	}
	return func(context.Context) error { return nil }, nil
}

var _ CampaignLocker = (*fakeLocker)(nil)

type fakeQuotaGate struct {
	consumeFn func(ctx context.Context, userID string) error
	releaseFn func(ctx context.Context, userID string, consumedAt time.Time) error
}

func (f *fakeQuotaGate) Consume(ctx context.Context, userID string) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, userID)
	}
	return nil
}

func (f *fakeQuotaGate) Release(ctx context.Context, userID string, consumedAt time.Time) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, userID, consumedAt)
	}
	return nil
}

type fakeEventProcessor struct {
	processFn func(ctx context.Context, event domain.NormalizedEvent) (ProcessOutcome, error)
}

func (f *fakeEventProcessor) Process(ctx context.Context, event domain.NormalizedEvent) (ProcessOutcome, error) {
	if f.processFn != nil {
		return f.processFn(ctx, event)
	}
	return OutcomeApplied, nil
}

func ptr[T any](v T) *T {
	return &v
}
