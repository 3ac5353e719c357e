package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/models"
	"docgen-workers/internal/store"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingStore wraps the memory store and can be told to fail reads.
type countingStore struct {
	*store.MemoryTemplateStore
	gets    int32
	failGet error
}

func (s *countingStore) GetByTemplateID(ctx context.Context, id string) (*models.Template, error) {
	atomic.AddInt32(&s.gets, 1)
	if s.failGet != nil {
		return nil, s.failGet
	}
	return s.MemoryTemplateStore.GetByTemplateID(ctx, id)
}

type indexRecorder struct {
	ids []string
}

func (r *indexRecorder) Index(_ context.Context, t *models.Template) error {
	r.ids = append(r.ids, t.ID)
	return nil
}

func viewingTemplate(id string) *models.Template {
	return &models.Template{
		ID:             id,
		Name:           "Viewing " + id,
		Category:       models.CategoryViewing,
		Subcategory:    "confirmation",
		Content:        "Hi {{buyer_name}}",
		Variables:      []string{"buyer_name"},
		RequiredFields: []string{"buyer_name"},
		Version:        "1",
	}
}

func newStore(ids ...string) *countingStore {
	var ts []*models.Template
	for _, id := range ids {
		ts = append(ts, viewingTemplate(id))
	}
	return &countingStore{MemoryTemplateStore: store.NewMemoryTemplateStore(ts...)}
}

func TestGet_MissThenHit(t *testing.T) {
	st := newStore("v1")
	clock := newClock()
	c := New(st, Config{}, WithClock(clock.Now))
	ctx := context.Background()

	first, err := c.Get(ctx, "v1", models.CategoryViewing, "confirmation")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := c.Get(ctx, "v1", models.CategoryViewing, "confirmation")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&st.gets))

	m := c.Metrics()
	assert.Equal(t, int64(1), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
	assert.Equal(t, int64(1), m.StoreLoads)
	assert.Equal(t, 0.5, m.HitRate)
	assert.Equal(t, DefaultCapacity, m.Capacity)

	entry, ok := c.Snapshot("viewing/confirmation/v1")
	require.True(t, ok)
	assert.Equal(t, int64(2), entry.AccessCount)
	assert.Equal(t, clock.Now(), entry.LastAccessed)
}

func TestGet_ReturnsIsolatedCopies(t *testing.T) {
	c := New(newStore("v1"), Config{})
	ctx := context.Background()

	got, err := c.Get(ctx, "v1", models.CategoryViewing, "confirmation")
	require.NoError(t, err)
	got.Content = "mutated"
	got.Variables[0] = "mutated"

	again, err := c.Get(ctx, "v1", models.CategoryViewing, "confirmation")
	require.NoError(t, err)
	assert.Equal(t, "Hi {{buyer_name}}", again.Content)
	assert.Equal(t, "buyer_name", again.Variables[0])
}

func TestGet_ExpiredEntryReloads(t *testing.T) {
	st := newStore("v1")
	clock := newClock()
	c := New(st, Config{TTL: 30 * time.Minute}, WithClock(clock.Now))
	ctx := context.Background()

	_, err := c.Get(ctx, "v1", models.CategoryViewing, "confirmation")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = c.Get(ctx, "v1", models.CategoryViewing, "confirmation")
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&st.gets))
	assert.Equal(t, int64(1), c.Metrics().Expirations)
	assert.Equal(t, int64(2), c.Metrics().Misses)
}

func TestGet_LoadFailures(t *testing.T) {
	boom := errors.New("connection refused")
	secondary := store.NewMemoryTemplateStore(viewingTemplate("fromfile"))

	tests := []struct {
		name         string
		failGet      error
		secondary    *store.MemoryTemplateStore
		id           string
		expectedCode apperrors.ErrorCode
		fallback     int64
	}{
		{"not found anywhere", nil, secondary, "ghost", apperrors.ErrCodeTemplateNotFound, 0},
		{"not found without secondary", nil, nil, "ghost", apperrors.ErrCodeTemplateNotFound, 0},
		{"store down, secondary misses", boom, secondary, "ghost", apperrors.ErrCodeTemplateUnavailable, 0},
		{"store down, secondary hits", boom, secondary, "fromfile", "", 1},
		{"store misses, secondary hits", nil, secondary, "fromfile", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newStore("v1")
			st.failGet = tt.failGet
			var opts []Option
			if tt.secondary != nil {
				opts = append(opts, WithSecondary(fileSource{tt.secondary}))
			}
			c := New(st, Config{}, opts...)

			got, err := c.Get(context.Background(), tt.id, models.CategoryViewing, "confirmation")
			if tt.expectedCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedCode, apperrors.CodeOf(err))
				if tt.failGet != nil {
					assert.ErrorIs(t, err, boom)
				}
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, got.ID)
			assert.Equal(t, tt.fallback, c.Metrics().FallbackLoads)
		})
	}
}

// fileSource adapts a memory store to the secondary source interface.
type fileSource struct {
	s *store.MemoryTemplateStore
}

func (f fileSource) Get(ctx context.Context, id string) (*models.Template, error) {
	return f.s.GetByTemplateID(ctx, id)
}

func TestEviction_RecencyAndFrequency(t *testing.T) {
	tests := []struct {
		name    string
		run     func(c *TemplateCache, clock *fakeClock)
		evicted string
	}{
		{
			name: "least recently used goes first",
			run: func(c *TemplateCache, clock *fakeClock) {
				ctx := context.Background()
				_, _ = c.Get(ctx, "a", models.CategoryViewing, "confirmation")
				_, _ = c.Get(ctx, "b", models.CategoryViewing, "confirmation")
				clock.Advance(time.Second)
				_, _ = c.Get(ctx, "a", models.CategoryViewing, "confirmation")
				clock.Advance(time.Second)
				_, _ = c.Get(ctx, "c", models.CategoryViewing, "confirmation")
			},
			evicted: "b",
		},
		{
			name: "frequent entries outlive newer ones",
			run: func(c *TemplateCache, clock *fakeClock) {
				ctx := context.Background()
				for i := 0; i < 4; i++ {
					_, _ = c.Get(ctx, "a", models.CategoryViewing, "confirmation")
				}
				clock.Advance(time.Minute)
				_, _ = c.Get(ctx, "b", models.CategoryViewing, "confirmation")
				clock.Advance(time.Minute)
				_, _ = c.Get(ctx, "c", models.CategoryViewing, "confirmation")
			},
			evicted: "b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newClock()
			c := New(newStore("a", "b", "c"), Config{Capacity: 2}, WithClock(clock.Now))

			tt.run(c, clock)

			_, ok := c.Snapshot("viewing/confirmation/" + tt.evicted)
			assert.False(t, ok)
			assert.Equal(t, 2, c.Metrics().Size)
			assert.Equal(t, int64(1), c.Metrics().Evictions)
		})
	}
}

func TestPut_ReplacesEntryAndIndexes(t *testing.T) {
	st := newStore("v1")
	idx := &indexRecorder{}
	c := New(st, Config{}, WithIndexer(idx))
	ctx := context.Background()

	_, err := c.Get(ctx, "v1", models.CategoryViewing, "confirmation")
	require.NoError(t, err)

	updated := viewingTemplate("v1")
	updated.Content = "Hello {{buyer_name}}"
	require.NoError(t, c.Put(ctx, updated))

	got, err := c.Get(ctx, "v1", models.CategoryViewing, "confirmation")
	require.NoError(t, err)
	assert.Equal(t, "Hello {{buyer_name}}", got.Content)
	assert.Equal(t, []string{"v1"}, idx.ids)

	stored, err := st.MemoryTemplateStore.GetByTemplateID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Hello {{buyer_name}}", stored.Content)
}

func TestPut_RejectsInvalidTemplate(t *testing.T) {
	c := New(newStore(), Config{})
	bad := viewingTemplate("v1")
	bad.RequiredFields = []string{"undeclared"}

	err := c.Put(context.Background(), bad)
	assert.Equal(t, apperrors.ErrCodeTemplateValidationFailed, apperrors.CodeOf(err))
}

func TestSearch_WarmsCache(t *testing.T) {
	st := newStore("v1", "v2")
	c := New(st, Config{})
	ctx := context.Background()

	found, err := c.Search(ctx, models.TemplateFilter{Category: models.CategoryViewing})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, 2, c.Metrics().Size)

	_, err = c.Get(ctx, "v2", models.CategoryViewing, "confirmation")
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&st.gets))
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, models.TemplateFilter) ([]models.Template, error) {
	return nil, errors.New("index missing")
}

func TestSearch_Failure(t *testing.T) {
	c := New(newStore(), Config{}, WithSearcher(failingSearcher{}))
	_, err := c.Search(context.Background(), models.TemplateFilter{Text: "x"})
	assert.Equal(t, apperrors.ErrCodeSearchQueryFailed, apperrors.CodeOf(err))
}

func TestPreloadAndInvalidate(t *testing.T) {
	c := New(newStore("v1", "v2", "v3"), Config{})

	n, err := c.Preload(context.Background(), models.TemplateFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, c.Metrics().Size)

	assert.True(t, c.Invalidate("viewing/confirmation/v1"))
	assert.False(t, c.Invalidate("viewing/confirmation/v1"))
	assert.Equal(t, 1, c.Metrics().Size)
}

func TestGet_Concurrent(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	c := New(newStore(ids...), Config{Capacity: 3})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Get(context.Background(), ids[i%len(ids)], models.CategoryViewing, "confirmation")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Metrics().Size, 3)
}

func TestProperty_SizeNeverExceedsCapacity(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("size stays within capacity", prop.ForAll(
		func(capacity int, accesses []int) bool {
			ids := make([]string, 10)
			for i := range ids {
				ids[i] = fmt.Sprintf("t%d", i)
			}
			clock := newClock()
			c := New(newStore(ids...), Config{Capacity: capacity}, WithClock(clock.Now))
			for _, a := range accesses {
				clock.Advance(time.Second)
				if _, err := c.Get(context.Background(), ids[a], models.CategoryViewing, "confirmation"); err != nil {
					return false
				}
				if c.Metrics().Size > capacity {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 5),
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
