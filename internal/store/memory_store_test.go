package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/redclaw/internal/domain"
)

func setupStore(t *testing.T) *MemoryStore {
	store := NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })
	return store
}

func levelOf(t *testing.T, s *MemoryStore, productID int64) domain.StockLevel {
	levels := s.Levels([]int64{productID})
	require.Len(t, levels, 1)
	return levels[0]
}

func TestMemoryStore_SetStock_And_Levels(t *testing.T) {
	store := setupStore(t)

	store.SetStock(1, 100)
	store.SetStock(2, 200)

	levels := store.Levels([]int64{1, 2, 3})

	// unknown products are skipped
	assert.Len(t, levels, 2)
	assert.Equal(t, int32(100), levelOf(t, store, 1).Available())
	assert.Equal(t, int32(200), levelOf(t, store, 2).OnHand)
}

func TestMemoryStore_Hold_Success(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)
	store.SetStock(2, 50)

	hold, err := store.Hold("rcpt_1", []domain.HoldItem{
		{ProductID: 1, Quantity: 10},
		{ProductID: 2, Quantity: 5},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, hold.ID)
	assert.Equal(t, "rcpt_1", hold.Receipt)
	assert.Equal(t, domain.HoldActive, hold.Status)
	assert.True(t, hold.ExpiresAt.After(time.Now()))

	assert.Equal(t, int32(90), levelOf(t, store, 1).Available())
	assert.Equal(t, int32(10), levelOf(t, store, 1).Held)
	assert.Equal(t, int32(45), levelOf(t, store, 2).Available())
}

func TestMemoryStore_Hold_DuplicateLinesAreSummed(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 10)

	_, err := store.Hold("rcpt_1", []domain.HoldItem{
		{ProductID: 1, Quantity: 6},
		{ProductID: 1, Quantity: 6},
	})

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int32(10), levelOf(t, store, 1).Available())
}

func TestMemoryStore_Hold_InsufficientStock(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 10)

	_, err := store.Hold("rcpt_1", []domain.HoldItem{{ProductID: 1, Quantity: 20}})

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, int32(10), levelOf(t, store, 1).Available())
}

func TestMemoryStore_Hold_ProductNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.Hold("rcpt_1", []domain.HoldItem{{ProductID: 999, Quantity: 1}})

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMemoryStore_Commit_Success(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)

	hold, _ := store.Hold("rcpt_1", []domain.HoldItem{{ProductID: 1, Quantity: 10}})

	committed, err := store.Commit(hold.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldCommitted, committed.Status)

	level := levelOf(t, store, 1)
	assert.Equal(t, int32(90), level.OnHand)
	assert.Equal(t, int32(0), level.Held)
}

func TestMemoryStore_Commit_Twice(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)
	hold, _ := store.Hold("rcpt_1", []domain.HoldItem{{ProductID: 1, Quantity: 10}})

	_, err := store.Commit(hold.ID)
	require.NoError(t, err)
	_, err = store.Commit(hold.ID)

	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, int32(90), levelOf(t, store, 1).OnHand)
}

func TestMemoryStore_Commit_NotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.Commit("nonexistent-id")

	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestMemoryStore_Commit_AfterRelease(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)
	hold, _ := store.Hold("rcpt_1", []domain.HoldItem{{ProductID: 1, Quantity: 10}})
	require.NoError(t, store.Release(hold.ID))

	_, err := store.Commit(hold.ID)

	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMemoryStore_Commit_Expired(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)
	hold, _ := store.Hold("rcpt_1", []domain.HoldItem{{ProductID: 1, Quantity: 10}})

	store.mu.Lock()
	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	store.mu.Unlock()

	_, err := store.Commit(hold.ID)

	assert.ErrorIs(t, err, ErrHoldExpired)
	assert.Equal(t, int32(100), levelOf(t, store, 1).Available())
}

func TestMemoryStore_Release_Success(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)
	hold, _ := store.Hold("rcpt_1", []domain.HoldItem{{ProductID: 1, Quantity: 10}})

	require.NoError(t, store.Release(hold.ID))

	level := levelOf(t, store, 1)
	assert.Equal(t, int32(100), level.OnHand)
	assert.Equal(t, int32(0), level.Held)
}

func TestMemoryStore_Release_NotFound(t *testing.T) {
	store := setupStore(t)

	assert.ErrorIs(t, store.Release("nonexistent-id"), ErrHoldNotFound)
}

func TestMemoryStore_ConcurrentHolds(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	// 10 buyers want 20 units each, only 5 can get them
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := store.Hold(fmt.Sprintf("rcpt_%d", id), []domain.HoldItem{{ProductID: 1, Quantity: 20}})
			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, successCount)
	level := levelOf(t, store, 1)
	assert.Equal(t, int32(0), level.Available())
	assert.Equal(t, int32(100), level.Held)
}

func TestMemoryStore_ExpireHolds(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)
	hold, _ := store.Hold("rcpt_1", []domain.HoldItem{{ProductID: 1, Quantity: 10}})

	store.mu.Lock()
	store.holds[hold.ID].ExpiresAt = time.Now().Add(-1 * time.Second)
	store.mu.Unlock()

	store.expireHolds()

	store.mu.RLock()
	status := store.holds[hold.ID].Status
	store.mu.RUnlock()
	assert.Equal(t, domain.HoldExpired, status)
	assert.Equal(t, int32(100), levelOf(t, store, 1).Available())
}

func TestMemoryStore_ExpireHolds_DropsFinishedHolds(t *testing.T) {
	store := setupStore(t)
	store.SetStock(1, 100)
	hold, _ := store.Hold("rcpt_1", []domain.HoldItem{{ProductID: 1, Quantity: 10}})
	_, err := store.Commit(hold.ID)
	require.NoError(t, err)

	store.mu.Lock()
	store.holds[hold.ID].ExpiresAt = time.Now().Add(-2 * time.Minute)
	store.mu.Unlock()

	store.expireHolds()

	store.mu.RLock()
	_, exists := store.holds[hold.ID]
	store.mu.RUnlock()
	assert.False(t, exists)
}
