// Package services exposes the card economy as one interface for the
// dispatch layer: the routing collaborator maps platform events onto these
// calls and renders the results.
package services

import (
	"context"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/catalog"
	"github.com/blackbirdbot/cardbot/cardbot/database/models"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/blackbirdbot/cardbot/cardbot/economy/freebie"
	"github.com/blackbirdbot/cardbot/cardbot/economy/packs"
	"github.com/blackbirdbot/cardbot/cardbot/economy/trade"
	"github.com/blackbirdbot/cardbot/cardbot/logger"
	"github.com/disgoorg/snowflake/v2"
)

type CardEconomyService interface {
	BuyPacks(ctx context.Context, playerID snowflake.ID, count int) (*packs.PurchaseReceipt, error)
	OpenPack(ctx context.Context, playerID snowflake.ID, series string) (*packs.PackManifest, error)
	TryClaimFreebie(ctx context.Context, playerID snowflake.ID) (*freebie.Result, error)
	ProposeTrade(ctx context.Context, initiator, counterparty economy.Party, offered, requested []economy.CardRef) (*models.Trade, error)
	AcceptTrade(ctx context.Context, tradeID string, acceptor snowflake.ID) error
	CancelTrade(ctx context.Context, tradeID string, caller snowflake.ID) error
	GetInventory(ctx context.Context, playerID snowflake.ID) (*InventoryView, error)
	GetCardInfo(ctx context.Context, cardID, series string) (*catalog.CardInfo, error)
	// GetOwnershipCount counts copies across the supplied membership scope;
	// group membership is owned by the dispatch collaborator.
	GetOwnershipCount(ctx context.Context, cardID, series string, members []snowflake.ID) (int64, error)
	SearchCards(query string, limit int) []economy.CardRef
	// AwardActivity credits chat/post rewards, materializing the player if
	// needed.
	AwardActivity(ctx context.Context, playerID snowflake.ID, amount int64) error
}

// InventoryLine is one grouped row of a player's collection.
type InventoryLine struct {
	CardID    string
	Series    string
	Name      string
	Rarity    int
	Shorthand string
	Count     int64
}

type InventoryView struct {
	Balance     int64
	Packs       int64
	TotalCards  int64
	UniqueCards int64
	TradedCards int64
	Cards       []InventoryLine
}

type Service struct {
	players     repositories.PlayerRepository
	collection  repositories.CollectionRepository
	catalog     *catalog.Catalog
	packs       *packs.Service
	gate        *freebie.Gate
	coordinator *trade.Coordinator
}

var _ CardEconomyService = (*Service)(nil)

func New(players repositories.PlayerRepository, collection repositories.CollectionRepository, cat *catalog.Catalog, packService *packs.Service, gate *freebie.Gate, coordinator *trade.Coordinator) *Service {
	return &Service{
		players:     players,
		collection:  collection,
		catalog:     cat,
		packs:       packService,
		gate:        gate,
		coordinator: coordinator,
	}
}

func (s *Service) BuyPacks(ctx context.Context, playerID snowflake.ID, count int) (*packs.PurchaseReceipt, error) {
	start := time.Now()
	receipt, err := s.packs.BuyPacks(ctx, playerID, count)
	logger.LogOperation("buy_packs", time.Since(start), err)
	return receipt, err
}

func (s *Service) OpenPack(ctx context.Context, playerID snowflake.ID, series string) (*packs.PackManifest, error) {
	start := time.Now()
	manifest, err := s.packs.OpenPack(ctx, playerID, series)
	logger.LogOperation("open_pack", time.Since(start), err)
	return manifest, err
}

func (s *Service) TryClaimFreebie(ctx context.Context, playerID snowflake.ID) (*freebie.Result, error) {
	start := time.Now()
	result, err := s.gate.TryClaimFreebie(ctx, playerID, start)
	logger.LogOperation("claim_freebie", time.Since(start), err)
	return result, err
}

func (s *Service) ProposeTrade(ctx context.Context, initiator, counterparty economy.Party, offered, requested []economy.CardRef) (*models.Trade, error) {
	start := time.Now()
	tr, err := s.coordinator.Propose(ctx, initiator, counterparty, offered, requested)
	logger.LogOperation("propose_trade", time.Since(start), err)
	return tr, err
}

func (s *Service) AcceptTrade(ctx context.Context, tradeID string, acceptor snowflake.ID) error {
	start := time.Now()
	err := s.coordinator.Accept(ctx, tradeID, acceptor)
	logger.LogOperation("accept_trade", time.Since(start), err)
	return err
}

func (s *Service) CancelTrade(ctx context.Context, tradeID string, caller snowflake.ID) error {
	start := time.Now()
	err := s.coordinator.Cancel(ctx, tradeID, caller)
	logger.LogOperation("cancel_trade", time.Since(start), err)
	return err
}

func (s *Service) GetInventory(ctx context.Context, playerID snowflake.ID) (*InventoryView, error) {
	id := playerID.String()
	player, err := s.players.GetOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := s.collection.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	grouped, err := s.collection.GroupedInventory(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &InventoryView{
		Balance:     player.Balance,
		Packs:       player.Packs,
		TotalCards:  summary.TotalCards,
		UniqueCards: summary.UniqueCards,
		TradedCards: summary.TradedCards,
		Cards:       make([]InventoryLine, 0, len(grouped)),
	}
	for _, row := range grouped {
		line := InventoryLine{
			CardID: row.CardID,
			Series: row.Series,
			Count:  row.Count,
		}
		// Cards may predate a catalog re-import; show them without metadata
		// rather than failing the whole view.
		if card, err := s.catalog.Card(row.CardID, row.Series); err == nil {
			line.Name = card.Name
			line.Rarity = card.Rarity
		}
		if def, err := s.catalog.SeriesInfo(row.Series); err == nil {
			line.Shorthand = def.Shorthand
		}
		view.Cards = append(view.Cards, line)
	}
	return view, nil
}

func (s *Service) GetCardInfo(ctx context.Context, cardID, series string) (*catalog.CardInfo, error) {
	return s.catalog.CardInfo(cardID, series)
}

func (s *Service) GetOwnershipCount(ctx context.Context, cardID, series string, members []snowflake.ID) (int64, error) {
	if _, err := s.catalog.Card(cardID, series); err != nil {
		return 0, err
	}
	ownerIDs := make([]string, 0, len(members))
	for _, member := range members {
		ownerIDs = append(ownerIDs, member.String())
	}
	return s.collection.CountByOwners(ctx, cardID, series, ownerIDs)
}

func (s *Service) SearchCards(query string, limit int) []economy.CardRef {
	return s.catalog.Search(query, limit)
}

func (s *Service) AwardActivity(ctx context.Context, playerID snowflake.ID, amount int64) error {
	if amount <= 0 {
		return &economy.ValidationError{Reason: "activity reward must be positive"}
	}
	id := playerID.String()
	if _, err := s.players.GetOrCreate(ctx, id); err != nil {
		return err
	}
	return s.players.AddBalance(ctx, id, amount)
}
