package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/pkg/logger"
)

const (
	// DefaultHoldTTL matches the time a buyer gets to finish paying.
	DefaultHoldTTL = 15 * time.Minute
	// CleanupInterval is how often expired holds are swept
	CleanupInterval = 30 * time.Second
)

type MemoryStore struct {
	mu     sync.RWMutex
	stocks map[int64]*domain.StockLevel
	holds  map[string]*domain.StockHold
	ttl    time.Duration
	now    func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	s := &MemoryStore{
		stocks:      make(map[int64]*domain.StockLevel),
		holds:       make(map[string]*domain.StockHold),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireHolds()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) expireHolds() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, hold := range s.holds {
		switch {
		case hold.Status == domain.HoldActive && hold.IsExpired(now):
			hold.Status = domain.HoldExpired
			s.returnStock(hold)
			logger.L().Info("stock hold expired", zap.String("hold_id", id), zap.String("receipt", hold.Receipt))
		case hold.Status != domain.HoldActive && now.Sub(hold.ExpiresAt) > s.ttl:
			// finished holds are kept one more ttl for late verifications
			delete(s.holds, id)
		}
	}
}

// returnStock must be called with the lock held.
func (s *MemoryStore) returnStock(hold *domain.StockHold) {
	for _, item := range hold.Items {
		if stock, ok := s.stocks[item.ProductID]; ok {
			stock.Held -= item.Quantity
		}
	}
}

func (s *MemoryStore) Levels(productIDs []int64) []domain.StockLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockLevel, 0, len(productIDs))
	for _, id := range productIDs {
		if stock, ok := s.stocks[id]; ok {
			result = append(result, *stock)
		}
	}
	return result
}

func (s *MemoryStore) Hold(receipt string, items []domain.HoldItem) (*domain.StockHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// quantities per product, a cart may list the same product twice
	wanted := make(map[int64]int32, len(items))
	for _, item := range items {
		wanted[item.ProductID] += item.Quantity
	}
	for productID, qty := range wanted {
		stock, ok := s.stocks[productID]
		if !ok {
			return nil, ErrProductNotFound
		}
		if stock.Available() < qty {
			return nil, ErrInsufficientStock
		}
	}

	for productID, qty := range wanted {
		s.stocks[productID].Held += qty
	}

	now := s.now()
	hold := &domain.StockHold{
		ID:        uuid.New().String(),
		Receipt:   receipt,
		Items:     items,
		Status:    domain.HoldActive,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.holds[hold.ID] = hold

	cp := *hold
	return &cp, nil
}

func (s *MemoryStore) Commit(holdID string) (*domain.StockHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hold, ok := s.holds[holdID]
	if !ok {
		return nil, ErrHoldNotFound
	}
	if hold.Status == domain.HoldExpired {
		return nil, ErrHoldExpired
	}
	if hold.Status != domain.HoldActive {
		return nil, ErrInvalidStatus
	}
	if hold.IsExpired(s.now()) {
		hold.Status = domain.HoldExpired
		s.returnStock(hold)
		return nil, ErrHoldExpired
	}

	for _, item := range hold.Items {
		stock := s.stocks[item.ProductID]
		stock.OnHand -= item.Quantity
		stock.Held -= item.Quantity
	}
	hold.Status = domain.HoldCommitted

	cp := *hold
	return &cp, nil
}

func (s *MemoryStore) Release(holdID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hold, ok := s.holds[holdID]
	if !ok {
		return ErrHoldNotFound
	}
	if hold.Status != domain.HoldActive {
		return ErrInvalidStatus
	}

	s.returnStock(hold)
	hold.Status = domain.HoldReleased
	return nil
}

// SetStock replaces the on-hand quantity and keeps current holds.
func (s *MemoryStore) SetStock(productID int64, quantity int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stock, ok := s.stocks[productID]; ok {
		stock.OnHand = quantity
		return
	}
	s.stocks[productID] = &domain.StockLevel{ProductID: productID, OnHand: quantity}
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}
