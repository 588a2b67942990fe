package events

import "time"

// Evento emitido quando um novo ativo passa a aceitar apostas.
type AssetRegistered struct {
	Asset    string    `json:"asset"`
	Symbol   string    `json:"symbol"`
	MinWager int64     `json:"min_wager"`
	MaxWager int64     `json:"max_wager"`
	By       string    `json:"by"`
	Ts       time.Time `json:"ts"`
}
