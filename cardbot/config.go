package cardbot

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/blackbirdbot/cardbot/cardbot/database"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	DB     database.DBConfig `toml:"db"`
	Game   GameConfig        `toml:"game"`
	Spaces SpacesConfig      `toml:"spaces"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

// GameConfig tunes the economy. Zero values fall back to the defaults in the
// economy package.
type GameConfig struct {
	PackPrice              int64 `toml:"pack_price"`
	PackSize               int   `toml:"pack_size"`
	DefaultBalance         int64 `toml:"default_balance"`
	FreebieCooldownMinutes int   `toml:"freebie_cooldown_minutes"`
	TradeWindowMinutes     int   `toml:"trade_window_minutes"`
}

func (c GameConfig) FreebieCooldown() time.Duration {
	if c.FreebieCooldownMinutes <= 0 {
		return 0
	}
	return time.Duration(c.FreebieCooldownMinutes) * time.Minute
}

func (c GameConfig) TradeWindow() time.Duration {
	if c.TradeWindowMinutes <= 0 {
		return 0
	}
	return time.Duration(c.TradeWindowMinutes) * time.Minute
}

type SpacesConfig struct {
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	CardRoot string `toml:"cardroot"`
}
