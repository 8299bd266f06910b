package roster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() *Service {
	return NewService(NewMemoryRepository(), quietLogger())
}

func TestService_Inc(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	first, err := svc.Inc(ctx, "10.0.0.1.alice")
	require.NoError(t, err)
	second, err := svc.Inc(ctx, "10.0.0.1.alice")
	require.NoError(t, err)
	other, err := svc.Inc(ctx, "10.0.0.2.alice")
	require.NoError(t, err)

	assert.Equal(t, int64(0), first)
	assert.Equal(t, int64(1), second)
	assert.Equal(t, int64(0), other)
	assert.Equal(t, uint64(3), svc.Version())
}

func TestService_IncAfterSync(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Sync(ctx, "h.p", []int64{0, 1, 2})
	require.NoError(t, err)

	id, err := svc.Inc(ctx, "h.p")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestService_IncRequiresIdentity(t *testing.T) {
	_, err := newTestService().Inc(context.Background(), "")
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

func TestService_Sync(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	ids, err := svc.Sync(ctx, "h.p", []int64{4, 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, ids)

	ids, err = svc.Sync(ctx, "h.p", []int64{3})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ids)

	ids, err = svc.Sync(ctx, "h.p", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, ids)
	assert.Equal(t, uint64(2), svc.Version())
}

func TestService_SyncUnknownIdentityEmpty(t *testing.T) {
	ids, err := newTestService().Sync(context.Background(), "h.p", nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NotNil(t, ids)
}

func TestService_SyncRejectsNegative(t *testing.T) {
	svc := newTestService()

	_, err := svc.Sync(context.Background(), "h.p", []int64{1, -1})
	assert.ErrorIs(t, err, ErrInvalidWorkerID)
	assert.Equal(t, uint64(0), svc.Version())
}

func TestService_SyncReturnsCopy(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	ids, err := svc.Sync(ctx, "h.p", []int64{1})
	require.NoError(t, err)
	ids[0] = 100

	ids, err = svc.Sync(ctx, "h.p", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestService_IncConcurrentUnique(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	const n = 200
	results := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.Inc(ctx, "h.p")
			if assert.NoError(t, err) {
				results <- id
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, n)
	for id := range results {
		assert.False(t, seen[id], "id %d minted twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

type failingRepository struct {
	*MemoryRepository
	err error
}

func (r *failingRepository) Save(context.Context, *Entry) error { return r.err }

func TestService_SaveFailure(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&failingRepository{MemoryRepository: NewMemoryRepository(), err: boom}, quietLogger())

	_, err := svc.Inc(context.Background(), "h.p")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(0), svc.Version())
}

func TestService_Restore(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	err := svc.Restore(ctx, []*Entry{
		{IPU: "h.p", Next: 4, IDs: []int64{3, 1, 3}},
		{IPU: ""},
		nil,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), svc.Version())

	entries, err := svc.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []int64{1, 3}, entries[0].IDs)

	id, err := svc.Inc(ctx, "h.p")
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)
}
