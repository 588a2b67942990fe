package store

import (
	"context"
	"sync"

	"github.com/radieske/coinflip-platform-poc/internal/model"
	"github.com/radieske/coinflip-platform-poc/internal/registry"
	"github.com/radieske/coinflip-platform-poc/internal/stats"
)

// Memory implementa Store em mapas protegidos por mutex.
type Memory struct {
	mu       sync.RWMutex
	bets     map[int64]*model.Bet
	byToken  map[string]int64
	assets   map[string]registry.AssetConfig
	stats    *stats.Snapshot
	cfg      *model.EngineConfig
	assetIDs []string // ordem de inserção
}

func NewMemory() *Memory {
	return &Memory{
		bets:    make(map[int64]*model.Bet),
		byToken: make(map[string]int64),
		assets:  make(map[string]registry.AssetConfig),
	}
}

func (m *Memory) CreateBet(_ context.Context, b *model.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bets[b.ID] = &cp
	m.byToken[b.Token] = b.ID
	return nil
}

func (m *Memory) GetBet(_ context.Context, id int64) (*model.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) GetBetByToken(_ context.Context, token string) (*model.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.bets[id]
	return &cp, nil
}

func (m *Memory) FinalizeBet(_ context.Context, b *model.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bets[b.ID]; !ok {
		return ErrNotFound
	}
	cp := *b
	m.bets[b.ID] = &cp
	return nil
}

func (m *Memory) MaxBetID(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var max int64
	for id := range m.bets {
		if id > max {
			max = id
		}
	}
	return max, nil
}

func (m *Memory) PendingCounts(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int)
	for _, b := range m.bets {
		if b.Status == model.StatusRequested {
			out[b.Player]++
		}
	}
	return out, nil
}

func (m *Memory) PendingBets(_ context.Context) ([]*model.Bet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Bet
	for _, b := range m.bets {
		if b.Status == model.StatusRequested {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) SaveAsset(_ context.Context, cfg registry.AssetConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[cfg.ID]; !ok {
		m.assetIDs = append(m.assetIDs, cfg.ID)
	}
	m.assets[cfg.ID] = cfg
	return nil
}

func (m *Memory) ListAssets(_ context.Context) ([]registry.AssetConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]registry.AssetConfig, 0, len(m.assetIDs))
	for _, id := range m.assetIDs {
		out = append(out, m.assets[id])
	}
	return out, nil
}

func (m *Memory) SaveStats(_ context.Context, s stats.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = &s
	return nil
}

func (m *Memory) LoadStats(_ context.Context) (stats.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stats == nil {
		return stats.Snapshot{}, false, nil
	}
	return *m.stats, true, nil
}

func (m *Memory) SaveEngineConfig(_ context.Context, cfg model.EngineConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = &cfg
	return nil
}

func (m *Memory) LoadEngineConfig(_ context.Context) (model.EngineConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return model.EngineConfig{}, false, nil
	}
	return *m.cfg, true, nil
}
