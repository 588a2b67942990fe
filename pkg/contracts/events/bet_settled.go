package events

import "time"

// Evento emitido pelo engine após liquidar ou reembolsar uma aposta.
type BetSettled struct {
	BetID   int64     `json:"bet_id"`
	Player  string    `json:"player"`
	Asset   string    `json:"asset"`
	Side    int       `json:"side"`
	Outcome int       `json:"outcome"` // -1 em reembolso (sem resultado)
	Amount  int64     `json:"amount"`
	Payout  int64     `json:"payout"` // 0 em derrota/reembolso
	Fee     int64     `json:"fee"`
	Won     bool      `json:"won"`
	Status  string    `json:"status"` // "SETTLED" | "REFUNDED"
	Ts      time.Time `json:"ts"`
}
