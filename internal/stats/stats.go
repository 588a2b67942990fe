package stats

import "sync"

// Counters agrupa os contadores monotônicos de participação.
// Nenhum campo decresce.
type Counters struct {
	GamesPlayed   int64 `json:"games_played"`
	Volume        int64 `json:"volume"`
	FeesCollected int64 `json:"fees_collected"`
	UniquePlayers int64 `json:"unique_players"`
}

// Ledger agrega contadores globais e por ativo. Mutado apenas pelo
// engine nos pontos de criação e liquidação de apostas.
type Ledger struct {
	mu          sync.RWMutex
	global      Counters
	perAsset    map[string]*Counters
	played      map[string]struct{}            // jogador já participou (global)
	playedAsset map[string]map[string]struct{} // asset -> jogadores
}

func NewLedger() *Ledger {
	return &Ledger{
		perAsset:    make(map[string]*Counters),
		played:      make(map[string]struct{}),
		playedAsset: make(map[string]map[string]struct{}),
	}
}

func (l *Ledger) asset(id string) *Counters {
	c, ok := l.perAsset[id]
	if !ok {
		c = &Counters{}
		l.perAsset[id] = c
	}
	return c
}

// RecordBetPlaced registra uma aposta aberta: jogos, volume e, na
// primeira participação do jogador, o contador de jogadores únicos.
func (l *Ledger) RecordBetPlaced(assetID, player string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.global.GamesPlayed++
	l.global.Volume += amount
	if _, ok := l.played[player]; !ok {
		l.played[player] = struct{}{}
		l.global.UniquePlayers++
	}

	a := l.asset(assetID)
	a.GamesPlayed++
	a.Volume += amount
	set, ok := l.playedAsset[assetID]
	if !ok {
		set = make(map[string]struct{})
		l.playedAsset[assetID] = set
	}
	if _, ok := set[player]; !ok {
		set[player] = struct{}{}
		a.UniquePlayers++
	}
}

// RecordFee registra a taxa coletada em uma liquidação.
func (l *Ledger) RecordFee(assetID string, fee int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.global.FeesCollected += fee
	l.asset(assetID).FeesCollected += fee
}

// HasPlayed responde se o jogador já participou de alguma aposta.
func (l *Ledger) HasPlayed(player string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.played[player]
	return ok
}

// Global retorna uma cópia dos contadores globais.
func (l *Ledger) Global() Counters {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.global
}

// Asset retorna uma cópia dos contadores de um ativo.
func (l *Ledger) Asset(assetID string) Counters {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if c, ok := l.perAsset[assetID]; ok {
		return *c
	}
	return Counters{}
}

// Snapshot exporta o estado para persistência.
type Snapshot struct {
	Global   Counters            `json:"global"`
	PerAsset map[string]Counters `json:"per_asset"`
	Players  []string            `json:"players"`
	// jogadores por ativo, para reconstruir o flag has-played
	AssetPlayers map[string][]string `json:"asset_players"`
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Snapshot{
		Global:       l.global,
		PerAsset:     make(map[string]Counters, len(l.perAsset)),
		AssetPlayers: make(map[string][]string, len(l.playedAsset)),
	}
	for id, c := range l.perAsset {
		s.PerAsset[id] = *c
	}
	for p := range l.played {
		s.Players = append(s.Players, p)
	}
	for id, set := range l.playedAsset {
		for p := range set {
			s.AssetPlayers[id] = append(s.AssetPlayers[id], p)
		}
	}
	return s
}

// Restore recarrega o estado a partir de um snapshot durável (boot).
func (l *Ledger) Restore(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.global = s.Global
	l.perAsset = make(map[string]*Counters, len(s.PerAsset))
	for id, c := range s.PerAsset {
		cc := c
		l.perAsset[id] = &cc
	}
	l.played = make(map[string]struct{}, len(s.Players))
	for _, p := range s.Players {
		l.played[p] = struct{}{}
	}
	l.playedAsset = make(map[string]map[string]struct{}, len(s.AssetPlayers))
	for id, ps := range s.AssetPlayers {
		set := make(map[string]struct{}, len(ps))
		for _, p := range ps {
			set[p] = struct{}{}
		}
		l.playedAsset[id] = set
	}
}
