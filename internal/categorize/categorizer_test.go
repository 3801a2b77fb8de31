package categorize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/poldna/internal/cache"
	"github.com/ppiankov/poldna/internal/llm"
	"github.com/ppiankov/poldna/internal/metrics"
	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/worker"
)

// MockProvider implements llm.Provider, replaying scripted outcomes
type MockProvider struct {
	mu      sync.Mutex
	calls   int
	titles  []string
	outcome []func() (*llm.CategorizeResponse, error)
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) IsAvailable(ctx context.Context) bool { return true }

func (m *MockProvider) Categorize(ctx context.Context, req llm.CategorizeRequest) (*llm.CategorizeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	m.titles = append(m.titles, req.Title)
	if i >= len(m.outcome) {
		i = len(m.outcome) - 1
	}
	return m.outcome[i]()
}

func answer(cat model.Category, w float64) func() (*llm.CategorizeResponse, error) {
	return func() (*llm.CategorizeResponse, error) {
		return &llm.CategorizeResponse{
			Categorization: model.Categorization{Category: cat, Weight: w, Source: "llm", Provider: "mock"},
			TokensUsed:     10,
		}, nil
	}
}

func failure(err error) func() (*llm.CategorizeResponse, error) {
	return func() (*llm.CategorizeResponse, error) { return nil, err }
}

func noSleep(context.Context, time.Duration) error { return nil }

func fastRetry(attempts int) worker.Retry {
	return worker.Retry{MaxAttempts: attempts, Base: time.Second, Sleep: noSleep}
}

func event(id, title string) model.VotingEvent {
	return model.VotingEvent{ID: id, Title: title}
}

func TestCategorize_Success(t *testing.T) {
	provider := &MockProvider{outcome: []func() (*llm.CategorizeResponse, error){answer(model.CategoryEnvironment, 0.8)}}
	c := New(provider, WithRetry(fastRetry(3)))

	got, err := c.Categorize(context.Background(), event("e1", "Wind farm subsidies"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Category != model.CategoryEnvironment || got.Weight != 0.8 {
		t.Errorf("unexpected categorization %+v", got)
	}
	if provider.titles[0] != "Wind farm subsidies" {
		t.Errorf("expected title to reach the provider, got %q", provider.titles[0])
	}
}

func TestCategorize_RetriesTransientErrors(t *testing.T) {
	provider := &MockProvider{outcome: []func() (*llm.CategorizeResponse, error){
		failure(errors.New("API error (503)")),
		failure(errors.New("API error (429)")),
		answer(model.CategoryEconomy, -0.2),
	}}
	registry := prometheus.NewRegistry()
	c := New(provider, WithRetry(fastRetry(3)), WithMetrics(metrics.NewManager(metrics.WithRegistry(registry))))

	got, err := c.Categorize(context.Background(), event("e1", "Budget"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Category != model.CategoryEconomy {
		t.Errorf("expected Economy, got %s", got.Category)
	}
	if provider.calls != 3 {
		t.Errorf("expected 3 calls, got %d", provider.calls)
	}
}

func TestCategorize_InvalidAnswerIsNotRetried(t *testing.T) {
	bad := fmt.Errorf("%w: unknown category \"Sports\"", llm.ErrInvalidCategorization)
	provider := &MockProvider{outcome: []func() (*llm.CategorizeResponse, error){failure(bad)}}
	c := New(provider, WithRetry(fastRetry(5)))

	got, err := c.Categorize(context.Background(), event("e1", "Stadium naming rights"))
	if !errors.Is(err, llm.ErrInvalidCategorization) {
		t.Fatalf("expected ErrInvalidCategorization, got %v", err)
	}
	if got != model.FallbackCategorization() {
		t.Errorf("expected fallback, got %+v", got)
	}
	if provider.calls != 1 {
		t.Errorf("expected a single call, got %d", provider.calls)
	}
}

func TestCategorize_ExhaustedRetriesFallBack(t *testing.T) {
	provider := &MockProvider{outcome: []func() (*llm.CategorizeResponse, error){failure(errors.New("connection refused"))}}
	c := New(provider, WithRetry(fastRetry(2)))

	got, err := c.Categorize(context.Background(), event("e1", "Budget"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got.Category != model.CategoryOther || got.Weight != 0 || got.Source != "fallback" {
		t.Errorf("expected Other/0 fallback, got %+v", got)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 calls, got %d", provider.calls)
	}
}

func TestCategorize_NoProvider(t *testing.T) {
	c := New(nil)
	got, err := c.Categorize(context.Background(), event("e1", "Budget"))
	if !errors.Is(err, llm.ErrProviderDisabled) {
		t.Fatalf("expected ErrProviderDisabled, got %v", err)
	}
	if got.Category != model.CategoryOther {
		t.Errorf("expected fallback, got %+v", got)
	}
}

func TestCategorize_EmptyTitle(t *testing.T) {
	provider := &MockProvider{outcome: []func() (*llm.CategorizeResponse, error){answer(model.CategoryEconomy, 1)}}
	c := New(provider)

	if _, err := c.Categorize(context.Background(), event("e1", "   ")); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if provider.calls != 0 {
		t.Error("provider must not be called for empty titles")
	}
}

func TestCategorize_CacheServesRepeatTitles(t *testing.T) {
	provider := &MockProvider{outcome: []func() (*llm.CategorizeResponse, error){answer(model.CategorySecurity, 0.6)}}
	c := New(provider, WithCache(cache.NewMemoryCache(time.Hour, time.Hour), time.Hour))

	first, err := c.Categorize(context.Background(), event("e1", "Defence Procurement Bill"))
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := c.Categorize(context.Background(), event("e2", "defence procurement   bill"))
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if provider.calls != 1 {
		t.Errorf("expected one provider call, got %d", provider.calls)
	}
	if first.Source != "llm" || second.Source != "cache" {
		t.Errorf("unexpected sources %q, %q", first.Source, second.Source)
	}
	if second.Category != model.CategorySecurity || second.Weight != 0.6 {
		t.Errorf("unexpected cached categorization %+v", second)
	}
}

func TestCategorize_OtherIsNotCached(t *testing.T) {
	provider := &MockProvider{outcome: []func() (*llm.CategorizeResponse, error){
		answer(model.CategoryOther, 0),
		answer(model.CategoryRegional, 0.3),
	}}
	c := New(provider, WithCache(cache.NewMemoryCache(time.Hour, time.Hour), time.Hour))

	first, _ := c.Categorize(context.Background(), event("e1", "Motion on regional rail"))
	second, _ := c.Categorize(context.Background(), event("e1", "Motion on regional rail"))

	if first.Category != model.CategoryOther {
		t.Errorf("expected Other first, got %s", first.Category)
	}
	if second.Category != model.CategoryRegional {
		t.Errorf("expected the retry to reach the provider, got %s", second.Category)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", provider.calls)
	}
}

func TestCategorize_CancelledContext(t *testing.T) {
	provider := &MockProvider{outcome: []func() (*llm.CategorizeResponse, error){answer(model.CategoryEconomy, 1)}}
	limiter := worker.NewLimiter(0.001, 1)
	_ = limiter.Wait(context.Background(), "mock")

	c := New(provider, WithLimiter(limiter), WithRetry(fastRetry(3)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := c.Categorize(ctx, event("e1", "Budget")); err == nil {
		t.Fatal("expected error when the rate limiter cannot admit the call")
	}
	if provider.calls != 0 {
		t.Errorf("expected no provider calls, got %d", provider.calls)
	}
}
