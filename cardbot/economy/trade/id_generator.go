package trade

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/blackbirdbot/cardbot/cardbot/database/repositories"
)

const (
	tradeIDPrefix = "TR"
	maxIDRetries  = 5
)

// idGenerator produces short, human-pasteable trade ids. Uniqueness is
// ultimately enforced by the trades.trade_id constraint; the existence check
// just keeps retries cheap.
type idGenerator struct {
	trades repositories.TradeRepository
	mu     sync.Mutex
}

func newIDGenerator(trades repositories.TradeRepository) *idGenerator {
	return &idGenerator{trades: trades}
}

func (g *idGenerator) Generate(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for attempt := 0; attempt < maxIDRetries; attempt++ {
		id, err := candidateID()
		if err != nil {
			return "", err
		}
		exists, err := g.trades.TradeIDExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check trade id: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique trade id after %d attempts", maxIDRetries)
}

func candidateID() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	suffix := base36encode(bytes)
	if len(suffix) < 4 {
		suffix = strings.Repeat("0", 4-len(suffix)) + suffix
	}
	return tradeIDPrefix + suffix[:4], nil
}

func base36encode(bytes []byte) string {
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	result := ""
	number := binary.BigEndian.Uint32(bytes)

	for number > 0 {
		result = string(alphabet[number%36]) + result
		number /= 36
	}
	return result
}
