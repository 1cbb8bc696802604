// Package cardbot wires the card economy together: configuration, database,
// catalog, and the game services the dispatch layer calls into.
package cardbot

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/catalog"
	"github.com/blackbirdbot/cardbot/cardbot/database"
	"github.com/blackbirdbot/cardbot/cardbot/database/repositories"
	"github.com/blackbirdbot/cardbot/cardbot/economy"
	"github.com/blackbirdbot/cardbot/cardbot/economy/draw"
	"github.com/blackbirdbot/cardbot/cardbot/economy/freebie"
	"github.com/blackbirdbot/cardbot/cardbot/economy/packs"
	"github.com/blackbirdbot/cardbot/cardbot/economy/services"
	"github.com/blackbirdbot/cardbot/cardbot/economy/trade"
	storage "github.com/blackbirdbot/cardbot/cardbot/services"
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
	}
}

type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB                   *database.DB
	PlayerRepository     repositories.PlayerRepository
	CardRepository       repositories.CardRepository
	CollectionRepository repositories.CollectionRepository
	TradeRepository      repositories.TradeRepository
	SpacesService        *storage.SpacesService
	Catalog              *catalog.Catalog
	Economy              services.CardEconomyService
	ExpiryWorker         *trade.ExpiryWorker
}

// Setup builds the repositories, the Spaces client and the catalog on top of
// an already-connected database. The catalog is not loaded here: on a fresh
// database there may be nothing to load until manifests are imported.
func (a *App) Setup() error {
	bunDB := a.DB.BunDB()
	a.PlayerRepository = repositories.NewPlayerRepository(bunDB)
	a.CardRepository = repositories.NewCardRepository(bunDB)
	a.CollectionRepository = repositories.NewCollectionRepository(bunDB)
	a.TradeRepository = repositories.NewTradeRepository(bunDB)

	spaces, err := storage.NewSpacesService(
		a.Cfg.Spaces.Key,
		a.Cfg.Spaces.Secret,
		a.Cfg.Spaces.Region,
		a.Cfg.Spaces.Bucket,
		a.Cfg.Spaces.CardRoot,
	)
	if err != nil {
		return err
	}
	a.SpacesService = spaces

	a.Catalog = catalog.New(a.CardRepository, spaces, economy.DefaultRarityShares)
	return nil
}

// Start loads the catalog and wires the game services. Call it after any
// manifest imports so the draw engine is built from the final weights; the
// engine snapshots them and a new series needs a restart to become drawable.
func (a *App) Start(ctx context.Context) error {
	if err := a.Catalog.Load(ctx); err != nil {
		return err
	}

	engine := draw.NewEngine(a.Catalog.AllWeights())

	// Each draw path owns its random source. The pack service and the
	// freebie gate lock independently, so a shared source would race.
	packService := packs.New(a.PlayerRepository, a.CollectionRepository, a.Catalog, engine, packs.Config{
		Price: a.Cfg.Game.PackPrice,
		Size:  a.Cfg.Game.PackSize,
	}, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))

	cooldown := a.Cfg.Game.FreebieCooldown()
	if cooldown <= 0 {
		cooldown = economy.FreebieCooldown
	}
	gate := freebie.New(a.PlayerRepository, a.CollectionRepository, a.Catalog, engine, cooldown,
		rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))

	window := a.Cfg.Game.TradeWindow()
	if window <= 0 {
		window = economy.TradeWindow
	}
	coordinator := trade.NewCoordinator(a.TradeRepository, a.CollectionRepository, a.PlayerRepository, window)

	a.Economy = services.New(a.PlayerRepository, a.CollectionRepository, a.Catalog, packService, gate, coordinator)
	a.ExpiryWorker = trade.NewExpiryWorker(coordinator, time.Minute)
	return nil
}

// Close stops background workers and releases the database pool.
func (a *App) Close() {
	if a.ExpiryWorker != nil {
		a.ExpiryWorker.Stop()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
