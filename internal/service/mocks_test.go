package service

import (
	"context"
	"sync"
	"time"

	"github.com/caption-studio/internal/adapter"
	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/ratelimit"
	"github.com/caption-studio/internal/retry"
	"github.com/caption-studio/internal/storage"
	"github.com/caption-studio/internal/types"
)

// Mock repositories for testing

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User // by external id

	getErr       error
	createErr    error
	updateErr    error
	deleteErr    error
	setErr       error
	decrementErr error
	touchErr     error
	listErr      error
	countErr     error

	creates    int
	sets       int
	decrements int
	touches    int
	resets     [][]string
	// raceOnCreate simulates another request inserting the identity first
	raceOnCreate *models.User
}

func newMockUserRepository(users ...*models.User) *mockUserRepository {
	m := &mockUserRepository{users: make(map[string]*models.User)}
	for _, u := range users {
		m.users[u.ExternalID] = u
	}
	return m
}

func (m *mockUserRepository) byID(userID string) *models.User {
	for _, u := range m.users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

func (m *mockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[externalID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.raceOnCreate != nil {
		m.users[m.raceOnCreate.ExternalID] = m.raceOnCreate
		return storage.ErrUserExists
	}
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[user.ExternalID]; ok {
		return storage.ErrUserExists
	}
	if user.ID == "" {
		user.ID = "id-" + user.ExternalID
	}
	copied := *user
	m.users[user.ExternalID] = &copied
	return nil
}

func (m *mockUserRepository) UpdateEmail(ctx context.Context, externalID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[externalID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.Email = email
	return nil
}

func (m *mockUserRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.users[externalID]; !ok {
		return storage.ErrUserNotFound
	}
	delete(m.users, externalID)
	return nil
}

func (m *mockUserRepository) SetCredits(ctx context.Context, userID string, credits int, activityAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	u := m.byID(userID)
	if u == nil {
		return storage.ErrUserNotFound
	}
	u.CreditsRemaining = credits
	u.LastActivityAt = &activityAt
	return nil
}

func (m *mockUserRepository) DecrementCredit(ctx context.Context, userID string, activityAt time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decrements++
	if m.decrementErr != nil {
		return 0, m.decrementErr
	}
	u := m.byID(userID)
	if u == nil {
		return 0, storage.ErrUserNotFound
	}
	u.LastActivityAt = &activityAt
	if u.CreditsRemaining <= 0 {
		return 0, storage.ErrNoCreditsRemaining
	}
	u.CreditsRemaining--
	return u.CreditsRemaining, nil
}

func (m *mockUserRepository) TouchActivity(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touches++
	if m.touchErr != nil {
		return m.touchErr
	}
	u := m.byID(userID)
	if u == nil {
		return storage.ErrUserNotFound
	}
	u.LastActivityAt = &at
	return nil
}

func (m *mockUserRepository) ListByPlan(ctx context.Context, plan types.Plan) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.User
	for _, u := range m.users {
		if u.Plan == plan {
			copied := *u
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockUserRepository) ResetCredits(ctx context.Context, userIDs []string, quota int, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, userIDs)
	n := 0
	for _, id := range userIDs {
		if u := m.byID(id); u != nil {
			u.CreditsRemaining = quota
			stamp := at
			u.LastCreditReset = &stamp
			n++
		}
	}
	return n, nil
}

func (m *mockUserRepository) CountUsers(ctx context.Context, since time.Time) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, 0, m.countErr
	}
	created := 0
	for _, u := range m.users {
		if !u.CreatedAt.Before(since) {
			created++
		}
	}
	return len(m.users), created, nil
}

func (m *mockUserRepository) get(externalID string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[externalID]
}

type mockGenerationRepository struct {
	mu        sync.Mutex
	created   []*models.Generation
	createErr error
	listErr   error
	stats     *storage.GenerationStats
	costs     []storage.WorkflowCost
}

func (m *mockGenerationRepository) Create(ctx context.Context, gen *models.Generation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	gen.ID = "gen-" + string(rune('a'+len(m.created)))
	m.created = append(m.created, gen)
	return gen.ID, nil
}

func (m *mockGenerationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var mine []*models.Generation
	for i := len(m.created) - 1; i >= 0; i-- {
		if m.created[i].UserID == userID {
			mine = append(mine, m.created[i])
		}
	}
	if offset >= len(mine) {
		return nil, nil
	}
	end := offset + limit
	if end > len(mine) {
		end = len(mine)
	}
	return mine[offset:end], nil
}

func (m *mockGenerationRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, g := range m.created {
		if g.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *mockGenerationRepository) Stats(ctx context.Context, since time.Time) (*storage.GenerationStats, error) {
	if m.stats == nil {
		return &storage.GenerationStats{Total: len(m.created)}, nil
	}
	return m.stats, nil
}

func (m *mockGenerationRepository) CostByWorkflow(ctx context.Context) ([]storage.WorkflowCost, error) {
	return m.costs, nil
}

type scrapeResult struct {
	content string
	err     error
}

// mockScraper returns results in order, repeating the last one
type mockScraper struct {
	mu      sync.Mutex
	results []scrapeResult
	calls   int
}

func (m *mockScraper) Scrape(ctx context.Context, pageURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.results) == 0 {
		return "", nil
	}
	idx := m.calls - 1
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	r := m.results[idx]
	return r.content, r.err
}

type fetchResult struct {
	data *adapter.RepositoryData
	err  error
}

type mockRepoFetcher struct {
	results []fetchResult
	calls   int
}

func (m *mockRepoFetcher) FetchRepository(ctx context.Context, owner, repo string) (*adapter.RepositoryData, error) {
	m.calls++
	idx := m.calls - 1
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	r := m.results[idx]
	return r.data, r.err
}

type mockScrapeCache struct {
	mu      sync.Mutex
	entries map[string]*models.ScrapedCacheEntry
	getErr  error
	upserts int
}

func newMockScrapeCache() *mockScrapeCache {
	return &mockScrapeCache{entries: make(map[string]*models.ScrapedCacheEntry)}
}

func (m *mockScrapeCache) Get(ctx context.Context, url string, now time.Time) (*models.ScrapedCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e := m.entries[url]
	if !e.Live(now) {
		return nil, nil
	}
	return e, nil
}

func (m *mockScrapeCache) Upsert(ctx context.Context, entry *models.ScrapedCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	copied := *entry
	m.entries[entry.URL] = &copied
	return nil
}

type mockUsageRecorder struct {
	mu     sync.Mutex
	events []*models.UsageEvent
}

func (m *mockUsageRecorder) Record(ctx context.Context, event *models.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockUsageRecorder) actions() []types.UsageAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.UsageAction, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

type fakeModel struct {
	mu      sync.Mutex
	name    string
	text    string
	tokens  int
	err     error
	block   bool // wait for ctx cancellation
	calls   int
	prompts []string
}

func (m *fakeModel) Name() string { return m.name }

func (m *fakeModel) Generate(ctx context.Context, prompt string) (*adapter.ModelOutput, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &adapter.ModelOutput{Text: m.text, Tokens: m.tokens, Model: m.name}, nil
}

type fakeLimiter struct {
	allowed bool
	calls   int
}

func (f *fakeLimiter) Allow(ctx context.Context, identifier string) (ratelimit.Decision, error) {
	f.calls++
	return ratelimit.Decision{
		Allowed: f.allowed,
		Limit:   10,
		ResetAt: time.Now().Add(time.Minute),
	}, nil
}

// recordingSleep captures backoff delays without waiting
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *recordingSleep) retrier() *retry.Retrier {
	return retry.New(retry.DefaultPolicy(), r.sleep)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
