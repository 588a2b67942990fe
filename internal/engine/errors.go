package engine

import "errors"

// Erros de validação: rejeitados antes de qualquer mudança de estado,
// o chamador pode corrigir a entrada e tentar de novo.
var (
	ErrEnginePaused      = errors.New("engine paused")
	ErrInvalidSide       = errors.New("side must be 0 or 1")
	ErrAssetNotWagerable = errors.New("asset not wagerable")
	ErrAmountOutOfBounds = errors.New("amount outside wager bounds")
	ErrBadAttachedValue  = errors.New("attached value mismatch")
	ErrTooManyPending    = errors.New("pending bet limit reached")
	ErrInvalidFeeRate    = errors.New("fee rate above 1000 bps")
)

// Erro de liquidez: custódia não cobre o pior caso. Checado antes de
// debitar, pra nunca prender fundos contra um prêmio impagável.
var ErrInsufficientLiquidity = errors.New("custody cannot cover worst-case payout")

// Conflitos de estado: nenhuma mutação aconteceu; ou erro de lógica do
// chamador, ou a corrida já foi resolvida pelo outro lado.
var (
	ErrUnknownBet         = errors.New("unknown bet")
	ErrUnknownCorrelation = errors.New("unknown correlation token")
	ErrAlreadySettled     = errors.New("bet already settled")
	ErrAlreadyRefunded    = errors.New("bet already refunded")
	ErrNotOwner           = errors.New("requester is not the bet owner")
	ErrNotEligible        = errors.New("bet not eligible for refund")
	ErrWithdrawTooLarge   = errors.New("withdrawal exceeds idle custody funds")
)
