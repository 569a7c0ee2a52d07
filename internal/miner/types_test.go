package miner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMiningStatusFailedPattern(t *testing.T) {
	t.Parallel()

	require.True(t, FailedStatus("timeout").IsFailed())
	require.True(t, MiningStatus("FAILED: upper").IsFailed())
	require.False(t, StatusDone.IsFailed())
	require.False(t, StatusPending.IsFailed())
	require.Equal(t, MiningStatus("failed: boom"), FailedStatus("boom"))
}

func TestItemIsPending(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item Item
		want bool
	}{
		{name: "fresh", item: Item{ID: "1", Website: "a.com"}, want: true},
		{name: "blank website", item: Item{ID: "2", Website: "  "}, want: false},
		{name: "has email", item: Item{ID: "3", Website: "b.com", Email: []string{"x@b.com"}}, want: false},
		{name: "done", item: Item{ID: "4", Website: "c.com", Email: []string{}, MiningStatus: StatusDone}, want: false},
		{name: "failed", item: Item{ID: "5", Website: "d.com", MiningStatus: FailedStatus("x")}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.item.IsPending())
		})
	}
}

func TestResultApply(t *testing.T) {
	t.Parallel()

	base := Item{ID: "1", Website: "a.com"}

	done := Result{Item: base}.Apply()
	require.Equal(t, StatusDone, done.MiningStatus)
	require.NotNil(t, done.Email)
	require.Empty(t, done.Email)

	found := Result{Item: base, Emails: []string{"hi@a.com"}}.Apply()
	require.Equal(t, []string{"hi@a.com"}, found.Email)

	failed := Result{Item: base, Err: errors.New("navigation timeout")}.Apply()
	require.Equal(t, MiningStatus("failed: navigation timeout"), failed.MiningStatus)
	require.Nil(t, failed.Email)
}
