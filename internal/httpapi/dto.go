package httpapi

import "github.com/radieske/coinflip-platform-poc/internal/stats"

type PlaceBetRequest struct {
	Player   string `json:"player"`
	Side     int    `json:"side"` // 0 | 1
	Asset    string `json:"asset"`
	Amount   int64  `json:"amount"`         // unidades base do ativo
	Attached int64  `json:"attached_value"` // só pro ativo nativo (== amount)
}

type PlaceBetResponse struct {
	BetID  int64  `json:"bet_id"`
	Status string `json:"status"` // REQUESTED
	Token  string `json:"token"`
	Fee    int64  `json:"fee"`
	Payout int64  `json:"payout"`
}

type RefundRequest struct {
	Player string `json:"player"`
}

type RegisterAssetRequest struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
	MinWager int64  `json:"min_wager"`
	MaxWager int64  `json:"max_wager"`
}

type BoundsRequest struct {
	MinWager int64 `json:"min_wager"`
	MaxWager int64 `json:"max_wager"`
}

type PausedRequest struct {
	Paused bool `json:"paused"`
}

type FeeConfigRequest struct {
	FeeRateBps   int64  `json:"fee_rate_bps"`
	FeeRecipient string `json:"fee_recipient,omitempty"`
}

type WithdrawRequest struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

type CapabilityRequest struct {
	Capability string `json:"capability"`
}

type CapabilitiesResponse struct {
	Operator     string   `json:"operator"`
	Capabilities []string `json:"capabilities"`
}

type StatsResponse struct {
	Global stats.Counters `json:"global"`
}

type PendingResponse struct {
	Player  string `json:"player"`
	Pending int    `json:"pending"`
}

type CustodyResponse struct {
	Asset   string `json:"asset"`
	Balance int64  `json:"balance"`
}
