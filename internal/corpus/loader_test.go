package corpus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/youthguide-na/opportunity-finder/internal/opportunity"
)

type stubStore struct {
	name  string
	items []opportunity.Opportunity
	err   error
	calls atomic.Int32

	// When set, Load signals started and blocks until release is closed.
	started chan struct{}
	release chan struct{}
}

func (s *stubStore) Name() string { return s.name }

func (s *stubStore) Load(ctx context.Context) (*Document, error) {
	s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	items := make([]opportunity.Opportunity, len(s.items))
	copy(items, s.items)
	return &Document{LastUpdated: "2025-01-20", Opportunities: items}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func records() []opportunity.Opportunity {
	return []opportunity.Opportunity{
		{ID: "1", Title: "Accountant", Source: "JobsInNamibia"},
		{ID: "2", Title: "Demo listing", Source: DefaultExampleSource},
		{ID: "1", Title: "Accountant (repost)", Source: "JobsInNamibia"},
		{ID: "3", Title: "", Source: "NIEIS"},
		{ID: "4", Title: "Bursary", Source: "NIEIS"},
	}
}

func newTestLoader(primary, fallback Store, clock *fakeClock, opts ...Option) *Loader {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewLoader(primary, fallback, opts...)
}

func ids(s *Snapshot) []string {
	out := make([]string, 0, s.Len())
	for _, o := range s.Items {
		out = append(out, o.ID)
	}
	return out
}

func TestLoaderPrimaryIsFilteredAndDeduplicated(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)}
	loader := newTestLoader(&stubStore{name: "primary", items: records()}, nil, clock)

	snap, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "4"}, ids(snap))
	assert.Equal(t, "Accountant", snap.Items[0].Title)
	assert.Equal(t, Primary, snap.Dataset)
	assert.Equal(t, "2025-01-20", snap.LastUpdated)
}

func TestLoaderFallbackKeepsExampleSource(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	loader := newTestLoader(&stubStore{name: "primary"}, &stubStore{name: "fallback", items: records()}, clock)

	snap, err := loader.Load(context.Background(), Fallback)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "4"}, ids(snap))
}

func TestLoaderIdempotentWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{name: "primary", items: records()}
	loader := newTestLoader(store, nil, clock)

	first, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	clock.Advance(DefaultTTL - time.Second)
	second, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)

	assert.Equal(t, first.Items, second.Items)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, store.calls.Load())
}

func TestLoaderReloadsAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{name: "primary", items: records()}
	loader := newTestLoader(store, nil, clock, WithTTL(time.Minute))

	_, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = loader.Load(context.Background(), Primary)
	require.NoError(t, err)

	assert.EqualValues(t, 2, store.calls.Load())
}

func TestLoaderDatasetSwitchInvalidates(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	primary := &stubStore{name: "primary", items: records()}
	fallback := &stubStore{name: "fallback", items: records()}
	loader := newTestLoader(primary, fallback, clock)

	ctx := context.Background()
	for _, ds := range []Dataset{Primary, Fallback, Primary} {
		snap, err := loader.Load(ctx, ds)
		require.NoError(t, err)
		assert.Equal(t, ds, snap.Dataset)
	}

	assert.EqualValues(t, 2, primary.calls.Load())
	assert.EqualValues(t, 1, fallback.calls.Load())
}

func TestLoaderReadFailureIsEmptyForFailureTTL(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{name: "primary", err: errors.New("no such file")}
	loader := newTestLoader(store, nil, clock, WithLogger(zap.New(core)))

	snap, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())

	clock.Advance(DefaultFailureTTL - time.Second)
	snap, err = loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
	assert.EqualValues(t, 1, store.calls.Load())

	clock.Advance(time.Second)
	_, err = loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.calls.Load())
	assert.Equal(t, 2, logs.FilterMessage("failed to read corpus, serving empty result").Len())
}

func TestLoaderRecoversAfterFailure(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{name: "primary", items: records(), err: errors.New("connection refused")}
	loader := newTestLoader(store, nil, clock, WithFailureTTL(time.Minute))

	snap, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())

	store.err = nil
	loader.Invalidate()

	snap, err = loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.EqualValues(t, 2, store.calls.Load())
}

func TestLoaderCancelledCallerDoesNotEmptyJoinedCallers(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{
		name:    "primary",
		items:   records(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	loader := newTestLoader(store, nil, clock)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := loader.Load(ctxA, Primary)
		errA <- err
	}()

	<-store.started
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	done := make(chan *Snapshot, 1)
	go func() {
		snap, err := loader.Load(context.Background(), Primary)
		assert.NoError(t, err)
		done <- snap
	}()

	close(store.release)
	snap := <-done
	assert.Equal(t, 2, snap.Len())
	assert.EqualValues(t, 1, store.calls.Load())
}

func TestLoaderReadTimeout(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{
		name:    "primary",
		items:   records(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	defer close(store.release)
	loader := newTestLoader(store, nil, clock, WithReadTimeout(20*time.Millisecond))

	snap, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
}

func TestLoaderUnknownDataset(t *testing.T) {
	loader := NewLoader(&stubStore{name: "primary"}, nil)

	_, err := loader.Load(context.Background(), Fallback)
	assert.ErrorIs(t, err, ErrUnknownDataset)

	_, err = loader.Load(context.Background(), Dataset("staging"))
	assert.ErrorIs(t, err, ErrUnknownDataset)
}

func TestParseDataset(t *testing.T) {
	d, err := ParseDataset("fallback")
	require.NoError(t, err)
	assert.Equal(t, Fallback, d)

	_, err = ParseDataset("real")
	assert.ErrorIs(t, err, ErrUnknownDataset)
}

func TestLoaderInvalidate(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{name: "primary", items: records()}
	loader := newTestLoader(store, nil, clock)

	_, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	loader.Invalidate()
	_, err = loader.Load(context.Background(), Primary)
	require.NoError(t, err)

	assert.EqualValues(t, 2, store.calls.Load())
}

func TestLoaderInvalidateDuringReloadSkipsCache(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{
		name:    "primary",
		items:   records(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	loader := newTestLoader(store, nil, clock)

	done := make(chan *Snapshot)
	go func() {
		snap, _ := loader.Load(context.Background(), Primary)
		done <- snap
	}()

	<-store.started
	loader.Invalidate()
	close(store.release)
	snap := <-done
	assert.Equal(t, 2, snap.Len())

	store.started = nil
	_, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.calls.Load())
}

func TestLoaderCollapsesConcurrentReloads(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{
		name:    "primary",
		items:   records(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	loader := newTestLoader(store, nil, clock)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := loader.Load(context.Background(), Primary)
			assert.NoError(t, err)
			assert.Equal(t, 2, snap.Len())
		}()
	}

	<-store.started
	close(store.release)
	wg.Wait()

	assert.EqualValues(t, 1, store.calls.Load())
}

func TestWatchInvalidatesOnMessage(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := &stubStore{name: "primary", items: records()}
	loader := newTestLoader(store, nil, clock)

	_, err := loader.Load(context.Background(), Primary)
	require.NoError(t, err)

	messages := make(chan *redis.Message, 1)
	messages <- &redis.Message{Channel: DefaultInvalidationChannel, Payload: "scrape finished"}
	close(messages)

	require.NoError(t, loader.Watch(context.Background(), messages))

	_, err = loader.Load(context.Background(), Primary)
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.calls.Load())
}

func TestWatchStopsOnContext(t *testing.T) {
	loader := NewLoader(&stubStore{name: "primary"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loader.Watch(ctx, make(chan *redis.Message))
	assert.ErrorIs(t, err, context.Canceled)
}

type stubPublisher struct {
	channel string
	message interface{}
	err     error
}

func (p *stubPublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.message = message
	return redis.NewIntResult(3, p.err)
}

func TestPublishInvalidation(t *testing.T) {
	pub := &stubPublisher{}
	n, err := PublishInvalidation(context.Background(), pub, DefaultInvalidationChannel, "manual")
	require.NoError(t, err)

	assert.EqualValues(t, 3, n)
	assert.Equal(t, DefaultInvalidationChannel, pub.channel)
	assert.Equal(t, "manual", pub.message)

	_, err = PublishInvalidation(context.Background(), &stubPublisher{err: errors.New("down")}, "c", "x")
	assert.Error(t, err)
}
