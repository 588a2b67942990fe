package model

import (
	"time"

	"github.com/radieske/coinflip-platform-poc/internal/randomness"
)

type BetStatus string

const (
	StatusRequested BetStatus = "REQUESTED"
	StatusSettled   BetStatus = "SETTLED"
	StatusRefunded  BetStatus = "REFUNDED"
)

// Bet é o modelo persistido de uma aposta de cara-ou-coroa.
// Invariantes: Payout = 2*Amount - Fee; transição de status acontece
// uma única vez, de REQUESTED para SETTLED ou REFUNDED.
type Bet struct {
	ID        int64     `json:"id"`
	Player    string    `json:"player"`
	Side      int       `json:"side"` // 0 ou 1
	Asset     string    `json:"asset"`
	Amount    int64     `json:"amount"`
	Fee       int64     `json:"fee"`
	Payout    int64     `json:"payout"`
	Outcome   int       `json:"outcome"` // -1 até a liquidação
	Status    BetStatus `json:"status"`
	Token     string    `json:"token"` // correlation token do oráculo
	CreatedAt time.Time `json:"created_at"`
	SettledAt time.Time `json:"settled_at,omitempty"` // zero até transição terminal
}

// EngineConfig agrupa a configuração mutável do engine, persistida
// para sobreviver a restart.
type EngineConfig struct {
	FeeRateBps   int64             `json:"fee_rate_bps"` // <= 1000 (10%)
	FeeRecipient string            `json:"fee_recipient"`
	Paused       bool              `json:"paused"`
	Randomness   randomness.Config `json:"randomness"`
}
