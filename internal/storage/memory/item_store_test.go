package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/contact-miner/internal/miner"
)

func TestItemStoreFindPendingFilters(t *testing.T) {
	t.Parallel()

	store, err := NewItemStore(
		miner.Item{ID: "1", Website: "a.com"},
		miner.Item{ID: "2", Website: "b.com", Email: []string{"x@b.com"}},
		miner.Item{ID: "3", Website: ""},
		miner.Item{ID: "4", Website: "d.com", MiningStatus: miner.FailedStatus("boom")},
		miner.Item{ID: "5", Website: "e.com", Email: []string{}, MiningStatus: miner.StatusDone},
		miner.Item{ID: "6", Website: "f.com"},
		miner.Item{ID: "7", Website: "g.com"},
	)
	require.NoError(t, err)
	ctx := context.Background()

	pending, err := store.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "6", "7"}, ids(pending))

	limited, err := store.FindPending(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "6"}, ids(limited))

	_, err = store.FindPending(ctx, 0)
	require.Error(t, err)
}

func TestItemStoreSaveAndReset(t *testing.T) {
	t.Parallel()

	store := NewItemStoreFromWebsites([]string{"a.com", "b.com"})
	ctx := context.Background()

	require.NoError(t, store.SaveResult(ctx, miner.Item{ID: "1", Email: []string{"x@a.com"}, MiningStatus: miner.StatusDone}))
	require.NoError(t, store.SaveResult(ctx, miner.Item{ID: "2", MiningStatus: miner.FailedStatus("timeout")}))
	require.Error(t, store.SaveResult(ctx, miner.Item{ID: "404", MiningStatus: miner.StatusDone}))

	first, ok := store.Get("1")
	require.True(t, ok)
	require.Equal(t, "a.com", first.Website)
	require.Equal(t, []string{"x@a.com"}, first.Email)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, miner.Stats{WithWebsite: 2, Done: 1, Failed: 1, Pending: 0}, stats)

	n, err := store.ResetFailed(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	pending, err := store.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, ids(pending))
}

func TestItemStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store, err := NewItemStore(miner.Item{ID: "1", Website: "a.com", Email: []string{"x@a.com"}})
	require.NoError(t, err)

	all := store.All()
	all[0].Email[0] = "mutated"
	got, _ := store.Get("1")
	require.Equal(t, "x@a.com", got.Email[0])

	_, err = NewItemStore(miner.Item{ID: "1"}, miner.Item{ID: "1"})
	require.Error(t, err)
}

func ids(items []miner.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
