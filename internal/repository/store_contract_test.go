package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/destroydevs/TikFetchBot/internal/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
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

type storeFactory func(t *testing.T, clock *fakeClock) UserStore

func sampleUser(id int64, at time.Time) model.User {
	chatID := id * 10
	return model.User{
		ID:           id,
		ChatID:       &chatID,
		Name:         "Ivan Petrov",
		RequestCount: 0,
		LastSeenAt:   model.Millis(at),
		RegisteredAt: model.Millis(at),
	}
}

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore storeFactory) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("CreateAndFetch", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, newFakeClock(start))

		exists, err := store.Exists(ctx, 42)
		require.NoError(t, err)
		assert.False(t, exists)

		u := sampleUser(42, start)
		require.NoError(t, store.Create(ctx, u))

		exists, err = store.Exists(ctx, 42)
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := store.Fetch(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, u, *got)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, newFakeClock(start))

		require.NoError(t, store.Create(ctx, sampleUser(7, start)))
		err := store.Create(ctx, sampleUser(7, start))
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("CreateWithoutChat", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, newFakeClock(start))

		u := sampleUser(8, start)
		u.ChatID = nil
		require.NoError(t, store.Create(ctx, u))

		got, err := store.Fetch(ctx, 8)
		require.NoError(t, err)
		assert.Nil(t, got.ChatID)
	})

	t.Run("FetchMissing", func(t *testing.T) {
		store := newStore(t, newFakeClock(start))
		_, err := store.Fetch(context.Background(), 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("IncrementRefreshesLastSeen", func(t *testing.T) {
		ctx := context.Background()
		clock := newFakeClock(start)
		store := newStore(t, clock)
		require.NoError(t, store.Create(ctx, sampleUser(1, start)))

		clock.Advance(3 * time.Hour)
		require.NoError(t, store.IncrementRequestCount(ctx, 1))
		clock.Advance(time.Minute)
		require.NoError(t, store.IncrementRequestCount(ctx, 1))

		got, err := store.Fetch(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.RequestCount)
		assert.Equal(t, model.Millis(start.Add(3*time.Hour+time.Minute)), got.LastSeenAt)
		assert.Equal(t, model.Millis(start), got.RegisteredAt)
	})

	t.Run("IncrementMissing", func(t *testing.T) {
		store := newStore(t, newFakeClock(start))
		err := store.IncrementRequestCount(context.Background(), 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ConcurrentIncrements", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, newFakeClock(start))
		require.NoError(t, store.Create(ctx, sampleUser(5, start)))
		require.NoError(t, store.Create(ctx, sampleUser(6, start)))

		const workers = 20
		var wg sync.WaitGroup
		errs := make(chan error, workers*2)
		for i := 0; i < workers; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				errs <- store.IncrementRequestCount(ctx, 5)
			}()
			go func() {
				defer wg.Done()
				errs <- store.IncrementRequestCount(ctx, 6)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		for _, id := range []int64{5, 6} {
			got, err := store.Fetch(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, int64(workers), got.RequestCount, "user %d", id)
		}
	})

	t.Run("SetField", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, newFakeClock(start))
		require.NoError(t, store.Create(ctx, sampleUser(3, start)))

		require.NoError(t, store.SetField(ctx, 3, model.FieldName, "Anna"))
		require.NoError(t, store.SetField(ctx, 3, model.FieldRequestCount, "17"))
		require.NoError(t, store.SetField(ctx, 3, model.FieldLastSeenAt, "1700000000000"))
		require.NoError(t, store.SetField(ctx, 3, model.FieldChatID, ""))

		got, err := store.Fetch(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "Anna", got.Name)
		assert.Equal(t, int64(17), got.RequestCount)
		assert.Equal(t, int64(1700000000000), got.LastSeenAt)
		assert.Nil(t, got.ChatID)

		require.NoError(t, store.SetField(ctx, 3, model.FieldChatID, "-100123"))
		got, err = store.Fetch(ctx, 3)
		require.NoError(t, err)
		require.NotNil(t, got.ChatID)
		assert.Equal(t, int64(-100123), *got.ChatID)
	})

	t.Run("SetFieldRejectsImmutable", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, newFakeClock(start))
		require.NoError(t, store.Create(ctx, sampleUser(4, start)))

		assert.ErrorIs(t, store.SetField(ctx, 4, model.FieldID, "5"), ErrInvalidField)
		assert.ErrorIs(t, store.SetField(ctx, 4, model.FieldRegisteredAt, "0"), ErrInvalidField)
		assert.ErrorIs(t, store.SetField(ctx, 4, model.FieldRequestCount, "many"), ErrInvalidValue)
		assert.ErrorIs(t, store.SetField(ctx, 404, model.FieldName, "ghost"), ErrNotFound)

		got, err := store.Fetch(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, sampleUser(4, start), *got)
	})

	t.Run("StatsAndDelete", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t, newFakeClock(start))

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.Stats{}, stats)

		require.NoError(t, store.Create(ctx, sampleUser(10, start)))
		require.NoError(t, store.Create(ctx, sampleUser(11, start)))
		require.NoError(t, store.IncrementRequestCount(ctx, 10))
		require.NoError(t, store.IncrementRequestCount(ctx, 10))
		require.NoError(t, store.IncrementRequestCount(ctx, 11))

		stats, err = store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.Stats{Users: 2, Requests: 3}, stats)

		require.NoError(t, store.Delete(ctx, 10))
		assert.ErrorIs(t, store.Delete(ctx, 10), ErrNotFound)

		stats, err = store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.Stats{Users: 1, Requests: 1}, stats)
	})
}
