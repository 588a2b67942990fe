// Package store define a persistência do flip-service. Postgres é a
// fonte de verdade; a implementação em memória serve testes e dev local.
package store

import (
	"context"
	"errors"

	"github.com/radieske/coinflip-platform-poc/internal/model"
	"github.com/radieske/coinflip-platform-poc/internal/registry"
	"github.com/radieske/coinflip-platform-poc/internal/stats"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	// --- Apostas ---

	// CreateBet insere a aposta em estado REQUESTED e indexa o token.
	CreateBet(ctx context.Context, b *model.Bet) error

	// GetBet retorna a aposta pelo id.
	GetBet(ctx context.Context, id int64) (*model.Bet, error)

	// GetBetByToken resolve o correlation token para a aposta.
	GetBetByToken(ctx context.Context, token string) (*model.Bet, error)

	// FinalizeBet grava a transição terminal (status, outcome, settledAt).
	FinalizeBet(ctx context.Context, b *model.Bet) error

	// MaxBetID retorna o maior id alocado (0 se vazio), para o boot.
	MaxBetID(ctx context.Context) (int64, error)

	// PendingCounts reconta apostas REQUESTED por jogador (boot).
	PendingCounts(ctx context.Context) (map[string]int, error)

	// PendingBets lista as apostas ainda REQUESTED (boot: fundos comprometidos).
	PendingBets(ctx context.Context) ([]*model.Bet, error)

	// --- Ativos ---

	SaveAsset(ctx context.Context, cfg registry.AssetConfig) error
	ListAssets(ctx context.Context) ([]registry.AssetConfig, error)

	// --- Stats ---

	SaveStats(ctx context.Context, s stats.Snapshot) error
	LoadStats(ctx context.Context) (stats.Snapshot, bool, error)

	// --- Config do engine ---

	SaveEngineConfig(ctx context.Context, cfg model.EngineConfig) error
	LoadEngineConfig(ctx context.Context) (model.EngineConfig, bool, error)
}
