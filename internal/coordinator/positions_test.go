package coordinator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybotio/copybot/internal/domain"
)

func TestPositionTableLockNewRejectsDuplicate(t *testing.T) {
	table := NewPositionTable()

	entry, ok := table.lockNew("BTC-USD:buy")
	require.True(t, ok)
	entry.pos.Status = domain.PositionStatusOpen
	entry.mu.Unlock()

	_, ok = table.lockNew("BTC-USD:buy")
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
}

func TestPositionTableLockExistingAfterRemove(t *testing.T) {
	table := NewPositionTable()

	entry, ok := table.lockNew("BTC-USD:buy")
	require.True(t, ok)
	table.remove("BTC-USD:buy")
	entry.mu.Unlock()

	_, ok = table.lockExisting("BTC-USD:buy")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}

func TestPositionTableSnapshotIsCopy(t *testing.T) {
	table := NewPositionTable()

	entry, ok := table.lockNew("BTC-USD:buy")
	require.True(t, ok)
	entry.pos = domain.Position{ID: "BTC-USD:buy", Status: domain.PositionStatusOpen}
	entry.mu.Unlock()

	snap := table.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Status = domain.PositionStatusClosed

	got, ok := table.Get("BTC-USD:buy")
	require.True(t, ok)
	assert.Equal(t, domain.PositionStatusOpen, got.Status)
}

// A lock-held entry is mid-transition; Snapshot must skip it rather than
// wait, so one slow venue call never stalls status views.
func TestPositionTableSnapshotSkipsLockedEntries(t *testing.T) {
	table := NewPositionTable()

	settled, ok := table.lockNew("ETH-USD:buy")
	require.True(t, ok)
	settled.pos = domain.Position{ID: "ETH-USD:buy", Status: domain.PositionStatusOpen}
	settled.mu.Unlock()

	// Keep this entry's lock held, as ExecuteCopyTrade does while the order
	// is in flight.
	inFlight, ok := table.lockNew("BTC-USD:buy")
	require.True(t, ok)
	inFlight.pos = domain.Position{ID: "BTC-USD:buy", Status: domain.PositionStatusPending}

	snap := table.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "ETH-USD:buy", snap[0].ID)

	inFlight.mu.Unlock()
	snap = table.Snapshot()
	assert.Len(t, snap, 2)
}

// Two goroutines racing to close the same position must produce exactly one
// close order: the loser re-checks status under the lock and backs off.
func TestConcurrentCloseSingleOrder(t *testing.T) {
	client := newFakeClient()
	gate := allowAll()
	c := New(gate, client, nil, nil, testConfig(), discardLogger())

	require.Equal(t, domain.OutcomeSubmitted,
		c.ExecuteCopyTrade(context.Background(), validSignal()).Kind)
	client.setPrice("BTC-USD", dec("49000"))

	id := domain.PositionID("BTC-USD", domain.OrderSideBuy)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.ClosePosition(context.Background(), id, "manual"))
		}()
	}
	wg.Wait()

	// One opening order plus exactly one closing order.
	calls := client.placed()
	require.Len(t, calls, 2)
	assert.Equal(t, domain.OrderSideSell, calls[1].side)
	assert.Empty(t, c.Positions())
	require.Len(t, gate.losses, 1)
}
