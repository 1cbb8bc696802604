// Package testutil provides an in-memory stand-in for the Postgres-backed
// repositories. It mirrors their atomic semantics (conditional updates,
// all-or-nothing transactions, guarded ownership swaps) so service tests can
// exercise race and failure paths without a database.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
)

// Store implements PlayerRepository, CollectionRepository and TradeRepository
// over process memory. A single mutex stands in for transaction isolation,
// which is stricter than Postgres but preserves every guarantee the services
// rely on.
type Store struct {
	mu sync.Mutex

	players map[string]*models.Player
	entries map[int64]*models.CollectionEntry
	trades  map[string]*models.Trade

	nextPlayerID int64
	nextEntryID  int64
	nextTradeID  int64
}

var (
	_ repositories.PlayerRepository     = (*Store)(nil)
	_ repositories.CollectionRepository = (*Store)(nil)
	_ repositories.TradeRepository      = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		players: make(map[string]*models.Player),
		entries: make(map[int64]*models.CollectionEntry),
		trades:  make(map[string]*models.Trade),
	}
}

// --- PlayerRepository ---

func (s *Store) GetOrCreate(_ context.Context, discordID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(discordID), nil
}

func (s *Store) getOrCreateLocked(discordID string) *models.Player {
	if p, ok := s.players[discordID]; ok {
		cp := *p
		return &cp
	}
	s.nextPlayerID++
	now := time.Now()
	p := &models.Player{
		ID:        s.nextPlayerID,
		DiscordID: discordID,
		Balance:   economy.DefaultBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.players[discordID] = p
	cp := *p
	return &cp
}

func (s *Store) Get(_ context.Context, discordID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[discordID]
	if !ok {
		return nil, fmt.Errorf("player %s not found", discordID)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) AddBalance(_ context.Context, discordID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[discordID]
	if !ok {
		return fmt.Errorf("player %s not found", discordID)
	}
	p.Balance += amount
	p.UpdatedAt = time.Now()
	return nil
}

func (s *Store) AdjustBalance(_ context.Context, discordID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[discordID]
	if !ok {
		return 0, fmt.Errorf("player %s not found", discordID)
	}
	if p.Balance+delta < 0 {
		return p.Balance, &economy.InsufficientFundsError{Balance: p.Balance, Cost: -delta}
	}
	p.Balance += delta
	p.UpdatedAt = time.Now()
	return p.Balance, nil
}

func (s *Store) AdjustPacks(_ context.Context, discordID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[discordID]
	if !ok {
		return 0, fmt.Errorf("player %s not found", discordID)
	}
	if p.Packs+delta < 0 {
		return 0, &economy.InvalidStateError{Reason: "no unopened packs"}
	}
	p.Packs += delta
	p.UpdatedAt = time.Now()
	return p.Packs, nil
}

func (s *Store) PurchasePacks(_ context.Context, discordID string, count int, unitPrice int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[discordID]
	if !ok {
		return 0, 0, fmt.Errorf("player %s not found", discordID)
	}
	cost := unitPrice * int64(count)
	if p.Balance < cost {
		return 0, 0, &economy.InsufficientFundsError{Balance: p.Balance, Cost: cost}
	}
	p.Balance -= cost
	p.Packs += int64(count)
	p.UpdatedAt = time.Now()
	return p.Balance, p.Packs, nil
}

// --- CollectionRepository ---

func (s *Store) RecordAcquisition(_ context.Context, entry *models.CollectionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertEntryLocked(entry)
	return nil
}

func (s *Store) insertEntryLocked(entry *models.CollectionEntry) {
	s.nextEntryID++
	entry.ID = s.nextEntryID
	if entry.AcquiredAt.IsZero() {
		entry.AcquiredAt = time.Now()
	}
	cp := *entry
	s.entries[entry.ID] = &cp
}

func (s *Store) RecordPackOpening(_ context.Context, ownerID string, entries []*models.CollectionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[ownerID]
	if !ok || p.Packs < 1 {
		return &economy.InvalidStateError{Reason: "no unopened packs"}
	}
	p.Packs--
	p.UpdatedAt = time.Now()
	for _, entry := range entries {
		s.insertEntryLocked(entry)
	}
	return nil
}

func (s *Store) ReassignOwnership(_ context.Context, entryID int64, expectedOwner, newOwner, tradedFrom string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok || entry.OwnerID != expectedOwner {
		return fmt.Errorf("entry %d not owned by %s", entryID, expectedOwner)
	}
	entry.OwnerID = newOwner
	entry.TradedFrom = tradedFrom
	return nil
}

func (s *Store) OldestOwned(_ context.Context, ownerID, cardID, series string, limit int) ([]*models.CollectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []*models.CollectionEntry
	for _, entry := range s.entries {
		if entry.OwnerID == ownerID && entry.CardID == cardID && entry.Series == series {
			cp := *entry
			owned = append(owned, &cp)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].AcquiredAt.Equal(owned[j].AcquiredAt) {
			return owned[i].AcquiredAt.Before(owned[j].AcquiredAt)
		}
		return owned[i].ID < owned[j].ID
	})
	if len(owned) > limit {
		owned = owned[:limit]
	}
	return owned, nil
}

func (s *Store) CountOwned(_ context.Context, ownerID, cardID, series string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, entry := range s.entries {
		if entry.OwnerID == ownerID && entry.CardID == cardID && entry.Series == series {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountsForPlayer(_ context.Context, ownerID, series string, cardIDs []string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		wanted[id] = true
	}
	counts := make(map[string]int64)
	for _, entry := range s.entries {
		if entry.OwnerID == ownerID && entry.Series == series && wanted[entry.CardID] {
			counts[entry.CardID]++
		}
	}
	return counts, nil
}

func (s *Store) GroupedInventory(_ context.Context, ownerID string) ([]*repositories.OwnedCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grouped := make(map[string]*repositories.OwnedCount)
	for _, entry := range s.entries {
		if entry.OwnerID != ownerID {
			continue
		}
		key := entry.Series + "/" + entry.CardID
		if row, ok := grouped[key]; ok {
			row.Count++
		} else {
			grouped[key] = &repositories.OwnedCount{CardID: entry.CardID, Series: entry.Series, Count: 1}
		}
	}
	rows := make([]*repositories.OwnedCount, 0, len(grouped))
	for _, row := range grouped {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Series != rows[j].Series {
			return rows[i].Series < rows[j].Series
		}
		return rows[i].CardID < rows[j].CardID
	})
	return rows, nil
}

func (s *Store) Summary(_ context.Context, ownerID string) (*repositories.InventorySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := &repositories.InventorySummary{}
	unique := make(map[string]bool)
	for _, entry := range s.entries {
		if entry.OwnerID != ownerID {
			continue
		}
		summary.TotalCards++
		if entry.TradedFrom != "" {
			summary.TradedCards++
		}
		unique[entry.Series+"/"+entry.CardID] = true
	}
	summary.UniqueCards = int64(len(unique))
	return summary, nil
}

func (s *Store) CountByOwners(_ context.Context, cardID, series string, ownerIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owners := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = true
	}
	var n int64
	for _, entry := range s.entries {
		if entry.CardID == cardID && entry.Series == series && owners[entry.OwnerID] {
			n++
		}
	}
	return n, nil
}

// --- TradeRepository ---

func (s *Store) Create(_ context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.nextTradeID++
	trade.ID = s.nextTradeID
	trade.Status = models.TradeProposed
	trade.CreatedAt = now
	trade.UpdatedAt = now
	cp := *trade
	s.trades[trade.TradeID] = &cp
	return nil
}

func (s *Store) GetByTradeID(_ context.Context, tradeID string) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok {
		return nil, fmt.Errorf("trade not found")
	}
	cp := *trade
	return &cp, nil
}

func (s *Store) TradeIDExists(_ context.Context, tradeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trades[tradeID]
	return ok, nil
}

func (s *Store) UpdateStatusIf(_ context.Context, tradeID string, from, to models.TradeStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok || trade.Status != from {
		return false, nil
	}
	trade.Status = to
	trade.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) ExecuteAccept(_ context.Context, tradeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trade, ok := s.trades[tradeID]
	if !ok {
		return fmt.Errorf("trade not found")
	}
	if trade.Status != models.TradeProposed {
		return &economy.InvalidStateError{Reason: fmt.Sprintf("trade is %s, not open", trade.Status)}
	}
	if time.Now().After(trade.ExpiresAt) {
		trade.Status = models.TradeExpired
		trade.UpdatedAt = time.Now()
		return &economy.InvalidStateError{Reason: "trade offer expired"}
	}

	if !s.ownsAllLocked(trade.OfferedEntryIDs, trade.InitiatorID) ||
		!s.ownsAllLocked(trade.RequestedEntryIDs, trade.CounterpartyID) {
		trade.Status = models.TradeCancelled
		trade.UpdatedAt = time.Now()
		return &economy.TradeInvalidatedError{
			TradeID: trade.TradeID,
			Reason:  "a referenced card changed hands since the proposal",
		}
	}

	s.reassignLocked(trade.OfferedEntryIDs, trade.InitiatorID, trade.CounterpartyID)
	s.reassignLocked(trade.RequestedEntryIDs, trade.CounterpartyID, trade.InitiatorID)
	trade.Status = models.TradeAccepted
	trade.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ownsAllLocked(entryIDs []int64, owner string) bool {
	for _, id := range entryIDs {
		entry, ok := s.entries[id]
		if !ok || entry.OwnerID != owner {
			return false
		}
	}
	return true
}

func (s *Store) reassignLocked(entryIDs []int64, from, to string) {
	for _, id := range entryIDs {
		entry := s.entries[id]
		entry.OwnerID = to
		entry.TradedFrom = from
	}
}

func (s *Store) ExpireOld(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	for _, trade := range s.trades {
		if trade.Status == models.TradeProposed && !trade.ExpiresAt.After(now) {
			trade.Status = models.TradeExpired
			trade.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// --- test helpers ---

// SeedPlayer creates a player with the given balance and pack count.
func (s *Store) SeedPlayer(discordID string, balance, packs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.players[discordID]
	if p == nil {
		s.nextPlayerID++
		now := time.Now()
		p = &models.Player{ID: s.nextPlayerID, DiscordID: discordID, CreatedAt: now, UpdatedAt: now}
		s.players[discordID] = p
	}
	p.Balance = balance
	p.Packs = packs
}

// SeedEntry inserts an owned copy and returns its row id.
func (s *Store) SeedEntry(ownerID, cardID, series string, acquiredAt time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &models.CollectionEntry{
		OwnerID:    ownerID,
		CardID:     cardID,
		Series:     series,
		AcquiredAt: acquiredAt,
	}
	s.insertEntryLocked(entry)
	return entry.ID
}

// Entry returns a copy of a collection row for assertions.
func (s *Store) Entry(id int64) *models.CollectionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil
	}
	cp := *entry
	return &cp
}
