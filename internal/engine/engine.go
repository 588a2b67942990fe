// Package engine implementa a máquina de estados das apostas: abre a
// aposta, correlaciona a entrega de randomness, calcula prêmio e taxa,
// e resolve apostas presas via reembolso por timeout.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/coinflip-platform-poc/internal/access"
	"github.com/radieske/coinflip-platform-poc/internal/custody"
	"github.com/radieske/coinflip-platform-poc/internal/model"
	"github.com/radieske/coinflip-platform-poc/internal/randomness"
	"github.com/radieske/coinflip-platform-poc/internal/registry"
	"github.com/radieske/coinflip-platform-poc/internal/shared/metrics"
	"github.com/radieske/coinflip-platform-poc/internal/stats"
	"github.com/radieske/coinflip-platform-poc/internal/store"
	"github.com/radieske/coinflip-platform-poc/pkg/contracts/events"
)

const (
	// MaxFeeRateBps limita a taxa administrável a 10%.
	MaxFeeRateBps = 1000

	feeDenominator = 10000

	lockStripes = 64
)

// Notifier publica notificações de liquidação (Kafka + Redis Pub/Sub).
// Falha de publicação não desfaz a liquidação: é só logada.
type Notifier interface {
	PublishBetSettled(ctx context.Context, ev events.BetSettled) error
}

// Params configura o engine na construção.
type Params struct {
	MaxPending   int           // apostas REQUESTED por jogador (default 5)
	StaleTimeout time.Duration // idade mínima pro reembolso (default 1h)
	FeeRateBps   int64         // taxa inicial se não houver config persistida
	FeeRecipient string
	Randomness   randomness.Config
}

// Engine é o dono exclusivo do ciclo de vida de Bet e dos contadores
// de pendência por jogador. Toda mutação de aposta passa por aqui,
// serializada por bet id (stripe de locks).
type Engine struct {
	log    *zap.Logger
	store  store.Store
	reg    *registry.Registry
	ledger custody.Ledger
	rng    randomness.Port
	stats  *stats.Ledger
	guard  *access.Guard
	notif  Notifier // opcional

	now func() time.Time

	cfgMu sync.RWMutex
	cfg   model.EngineConfig

	idSeq atomic.Int64

	betLocks [lockStripes]sync.Mutex

	playersMu sync.Mutex
	pending   map[string]int
	locked    map[string]int64 // asset -> saída máxima comprometida (prêmio + taxa)

	maxPending   int
	staleTimeout time.Duration
}

// New monta o engine e recarrega do store o estado durável: config,
// stats, contadores de pendência, fundos comprometidos e o último id.
func New(ctx context.Context, log *zap.Logger, st store.Store, reg *registry.Registry,
	ledger custody.Ledger, rng randomness.Port, sl *stats.Ledger, guard *access.Guard,
	notif Notifier, p Params) (*Engine, error) {

	if p.MaxPending <= 0 {
		p.MaxPending = 5
	}
	if p.StaleTimeout <= 0 {
		p.StaleTimeout = time.Hour
	}
	if p.FeeRateBps < 0 || p.FeeRateBps > MaxFeeRateBps {
		return nil, ErrInvalidFeeRate
	}

	e := &Engine{
		log:          log,
		store:        st,
		reg:          reg,
		ledger:       ledger,
		rng:          rng,
		stats:        sl,
		guard:        guard,
		notif:        notif,
		now:          time.Now,
		pending:      make(map[string]int),
		locked:       make(map[string]int64),
		maxPending:   p.MaxPending,
		staleTimeout: p.StaleTimeout,
	}

	cfg, ok, err := st.LoadEngineConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}
	if !ok {
		cfg = model.EngineConfig{
			FeeRateBps:   p.FeeRateBps,
			FeeRecipient: p.FeeRecipient,
			Randomness:   p.Randomness,
		}
		if err := st.SaveEngineConfig(ctx, cfg); err != nil {
			return nil, fmt.Errorf("save engine config: %w", err)
		}
	}
	e.cfg = cfg

	snap, ok, err := st.LoadStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if ok {
		sl.Restore(snap)
	}

	counts, err := st.PendingCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending counts: %w", err)
	}
	e.pending = counts

	open, err := st.PendingBets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending bets: %w", err)
	}
	for _, b := range open {
		e.locked[b.Asset] += b.Payout + b.Fee
	}

	maxID, err := st.MaxBetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load max bet id: %w", err)
	}
	e.idSeq.Store(maxID)

	return e, nil
}

func (e *Engine) betLock(id int64) *sync.Mutex {
	return &e.betLocks[id%lockStripes]
}

func (e *Engine) config() model.EngineConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// ComputeFee retorna floor(amount * feeRateBps / 10000).
func ComputeFee(amount, feeRateBps int64) int64 {
	return amount * feeRateBps / feeDenominator
}

// reservePending faz o check-then-increment do limite de pendências
// numa única seção crítica.
func (e *Engine) reservePending(player, asset string, payout int64) error {
	e.playersMu.Lock()
	defer e.playersMu.Unlock()
	if e.pending[player] >= e.maxPending {
		return ErrTooManyPending
	}
	e.pending[player]++
	e.locked[asset] += payout
	metrics.PendingBets.Inc()
	return nil
}

func (e *Engine) releasePending(player, asset string, payout int64) {
	e.playersMu.Lock()
	defer e.playersMu.Unlock()
	metrics.PendingBets.Dec()
	e.pending[player]--
	if e.pending[player] <= 0 {
		delete(e.pending, player)
	}
	e.locked[asset] -= payout
}

// PlaceBet valida, move a aposta pra custódia, pede randomness e
// persiste a aposta em REQUESTED. Atômico do ponto de vista do
// chamador: qualquer falha desfaz o que já tiver sido feito.
func (e *Engine) PlaceBet(ctx context.Context, player string, side int, asset string, amount, attached int64) (*model.Bet, error) {
	cfg := e.config()
	if cfg.Paused {
		return nil, ErrEnginePaused
	}
	if side != 0 && side != 1 {
		return nil, ErrInvalidSide
	}
	if !e.reg.IsWagerable(asset) {
		return nil, ErrAssetNotWagerable
	}
	ac, _ := e.reg.Get(asset)
	if amount < ac.MinWager || amount > ac.MaxWager {
		return nil, ErrAmountOutOfBounds
	}

	native := asset == e.reg.NativeID()
	if native && attached != amount {
		return nil, ErrBadAttachedValue
	}
	if !native && attached != 0 {
		return nil, ErrBadAttachedValue
	}

	fee := ComputeFee(amount, cfg.FeeRateBps)
	payout := 2*amount - fee

	// Solvência antes de debitar: com a aposta dentro, a custódia
	// precisa cobrir a saída máxima (prêmio + taxa).
	custodyBal, err := e.ledger.BalanceOf(ctx, asset, custody.ServiceAccount)
	if err != nil {
		return nil, fmt.Errorf("custody balance: %w", err)
	}
	idle := custodyBal - e.lockedFor(asset)
	if idle+amount < payout+fee {
		return nil, ErrInsufficientLiquidity
	}

	if err := e.reservePending(player, asset, payout+fee); err != nil {
		return nil, err
	}

	// A partir daqui qualquer falha compensa o que já foi feito.
	fail := func(cause error) (*model.Bet, error) {
		e.releasePending(player, asset, payout+fee)
		return nil, cause
	}

	if native {
		if err := e.ledger.DepositAttached(ctx, asset, player, attached); err != nil {
			return fail(fmt.Errorf("deposit attached: %w", err))
		}
	} else {
		if err := e.ledger.Debit(ctx, asset, player, amount); err != nil {
			return fail(fmt.Errorf("debit stake: %w", err))
		}
	}

	token, err := e.rng.RequestOne(ctx)
	if err != nil {
		// devolve a aposta: sem randomness não há aposta
		if cerr := e.ledger.Credit(ctx, asset, player, amount); cerr != nil {
			e.log.Error("stake refund after provider failure",
				zap.String("player", player), zap.Error(cerr))
		}
		return fail(err)
	}

	b := &model.Bet{
		ID:        e.idSeq.Add(1),
		Player:    player,
		Side:      side,
		Asset:     asset,
		Amount:    amount,
		Fee:       fee,
		Payout:    payout,
		Outcome:   -1,
		Status:    model.StatusRequested,
		Token:     token,
		CreatedAt: e.now(),
	}

	if err := e.store.CreateBet(ctx, b); err != nil {
		if cerr := e.ledger.Credit(ctx, asset, player, amount); cerr != nil {
			e.log.Error("stake refund after store failure",
				zap.String("player", player), zap.Error(cerr))
		}
		return fail(fmt.Errorf("persist bet: %w", err))
	}

	e.stats.RecordBetPlaced(asset, player, amount)
	e.persistStats(ctx)
	metrics.BetsPlaced.WithLabelValues(asset).Inc()

	e.log.Info("bet placed",
		zap.Int64("bet_id", b.ID),
		zap.String("player", player),
		zap.String("asset", asset),
		zap.Int64("amount", amount),
		zap.String("token", token),
	)
	return b, nil
}

func (e *Engine) lockedFor(asset string) int64 {
	e.playersMu.Lock()
	defer e.playersMu.Unlock()
	return e.locked[asset]
}

// OnRandomness aplica a entrega do oráculo. Idempotente por token:
// entregas duplicadas ou desconhecidas não mutam nada. A liquidação é
// uma unidade só — crédito falhou, estado não muda e a entrega pode
// ser repetida como a original.
func (e *Engine) OnRandomness(ctx context.Context, token string, value []byte) error {
	if len(value) == 0 {
		return ErrUnknownCorrelation
	}

	ref, err := e.store.GetBetByToken(ctx, token)
	if err != nil {
		e.log.Warn("randomness for unknown token", zap.String("token", token))
		return ErrUnknownCorrelation
	}

	mu := e.betLock(ref.ID)
	mu.Lock()
	defer mu.Unlock()

	// relê sob o lock: o estado pode ter mudado na corrida
	b, err := e.store.GetBet(ctx, ref.ID)
	if err != nil {
		return ErrUnknownCorrelation
	}
	switch b.Status {
	case model.StatusSettled:
		return ErrAlreadySettled
	case model.StatusRefunded:
		return ErrAlreadyRefunded
	}

	cfg := e.config()
	outcome := int(value[len(value)-1] % 2)
	won := outcome == b.Side

	if won {
		if err := e.ledger.Credit(ctx, b.Asset, b.Player, b.Payout); err != nil {
			return fmt.Errorf("credit payout: %w", err)
		}
		if b.Fee > 0 {
			if err := e.ledger.Credit(ctx, b.Asset, cfg.FeeRecipient, b.Fee); err != nil {
				// desfaz o prêmio já pago pra manter a liquidação atômica
				if derr := e.ledger.Debit(ctx, b.Asset, b.Player, b.Payout); derr != nil {
					e.log.Error("payout compensation failed",
						zap.Int64("bet_id", b.ID), zap.Error(derr))
				}
				return fmt.Errorf("credit fee: %w", err)
			}
		}
	} else if b.Fee > 0 {
		// derrota: só a taxa sai; o resto da aposta fica na custódia
		if err := e.ledger.Credit(ctx, b.Asset, cfg.FeeRecipient, b.Fee); err != nil {
			return fmt.Errorf("credit fee: %w", err)
		}
	}

	b.Outcome = outcome
	b.Status = model.StatusSettled
	b.SettledAt = e.now()
	if err := e.store.FinalizeBet(ctx, b); err != nil {
		e.compensateSettlement(ctx, b, won, cfg.FeeRecipient)
		return fmt.Errorf("persist settlement: %w", err)
	}

	e.releasePending(b.Player, b.Asset, b.Payout+b.Fee)
	e.stats.RecordFee(b.Asset, b.Fee)
	e.persistStats(ctx)

	result := "lost"
	payout := int64(0)
	if won {
		result = "won"
		payout = b.Payout
	}
	metrics.BetsSettled.WithLabelValues(b.Asset, result).Inc()
	metrics.FeesCollected.WithLabelValues(b.Asset).Add(float64(b.Fee))
	metrics.RandomnessLag.Observe(b.SettledAt.Sub(b.CreatedAt).Seconds())
	e.publish(ctx, events.BetSettled{
		BetID: b.ID, Player: b.Player, Asset: b.Asset, Side: b.Side,
		Outcome: outcome, Amount: b.Amount, Payout: payout, Fee: b.Fee,
		Won: won, Status: string(model.StatusSettled), Ts: e.now(),
	})

	e.log.Info("bet settled",
		zap.Int64("bet_id", b.ID),
		zap.Int("outcome", outcome),
		zap.Bool("won", won),
		zap.Int64("fee", b.Fee),
	)
	return nil
}

// compensateSettlement devolve pra custódia os créditos de uma
// liquidação cuja persistência falhou.
func (e *Engine) compensateSettlement(ctx context.Context, b *model.Bet, won bool, feeRecipient string) {
	if won {
		if err := e.ledger.Debit(ctx, b.Asset, b.Player, b.Payout); err != nil {
			e.log.Error("settlement compensation failed",
				zap.Int64("bet_id", b.ID), zap.Error(err))
		}
	}
	if b.Fee > 0 {
		if err := e.ledger.Debit(ctx, b.Asset, feeRecipient, b.Fee); err != nil {
			e.log.Error("fee compensation failed",
				zap.Int64("bet_id", b.ID), zap.Error(err))
		}
	}
}

// RefundIfStale devolve a aposta original de uma bet REQUESTED cujo
// oráculo nunca respondeu. Único caminho de recuperação; disponível
// pra sempre depois do timeout, sem limite de tentativas.
func (e *Engine) RefundIfStale(ctx context.Context, betID int64, requester string) error {
	ref, err := e.store.GetBet(ctx, betID)
	if err != nil {
		return ErrUnknownBet
	}

	mu := e.betLock(ref.ID)
	mu.Lock()
	defer mu.Unlock()

	b, err := e.store.GetBet(ctx, betID)
	if err != nil {
		return ErrUnknownBet
	}
	if b.Player != requester {
		return ErrNotOwner
	}
	if b.Status != model.StatusRequested {
		return ErrNotEligible
	}
	if e.now().Sub(b.CreatedAt) < e.staleTimeout {
		return ErrNotEligible
	}

	// devolve a aposta original, não o prêmio
	if err := e.ledger.Credit(ctx, b.Asset, b.Player, b.Amount); err != nil {
		return fmt.Errorf("refund stake: %w", err)
	}

	b.Status = model.StatusRefunded
	b.SettledAt = e.now()
	if err := e.store.FinalizeBet(ctx, b); err != nil {
		if derr := e.ledger.Debit(ctx, b.Asset, b.Player, b.Amount); derr != nil {
			e.log.Error("refund compensation failed",
				zap.Int64("bet_id", b.ID), zap.Error(derr))
		}
		return fmt.Errorf("persist refund: %w", err)
	}

	e.releasePending(b.Player, b.Asset, b.Payout+b.Fee)
	metrics.BetsRefunded.WithLabelValues(b.Asset).Inc()

	e.publish(ctx, events.BetSettled{
		BetID: b.ID, Player: b.Player, Asset: b.Asset, Side: b.Side,
		Outcome: -1, Amount: b.Amount, Payout: 0, Fee: 0,
		Won: false, Status: string(model.StatusRefunded), Ts: e.now(),
	})

	e.log.Info("bet refunded", zap.Int64("bet_id", b.ID), zap.String("player", b.Player))
	return nil
}

func (e *Engine) persistStats(ctx context.Context) {
	if err := e.store.SaveStats(ctx, e.stats.Snapshot()); err != nil {
		e.log.Warn("persist stats", zap.Error(err))
	}
}

func (e *Engine) publish(ctx context.Context, ev events.BetSettled) {
	if e.notif == nil {
		return
	}
	if err := e.notif.PublishBetSettled(ctx, ev); err != nil {
		e.log.Warn("publish settlement", zap.Int64("bet_id", ev.BetID), zap.Error(err))
	}
}

// --- Consultas ---

func (e *Engine) GetBet(ctx context.Context, id int64) (*model.Bet, error) {
	b, err := e.store.GetBet(ctx, id)
	if err != nil {
		return nil, ErrUnknownBet
	}
	return b, nil
}

func (e *Engine) PendingCount(player string) int {
	e.playersMu.Lock()
	defer e.playersMu.Unlock()
	return e.pending[player]
}

func (e *Engine) CustodyBalance(ctx context.Context, asset string) (int64, error) {
	return e.ledger.BalanceOf(ctx, asset, custody.ServiceAccount)
}

func (e *Engine) Config() model.EngineConfig { return e.config() }

func (e *Engine) RandomnessConfig() randomness.Config { return e.config().Randomness }

// --- Operações administrativas (role-gated) ---

func (e *Engine) updateConfig(ctx context.Context, mutate func(*model.EngineConfig)) error {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	next := e.cfg
	mutate(&next)
	if err := e.store.SaveEngineConfig(ctx, next); err != nil {
		return fmt.Errorf("persist engine config: %w", err)
	}
	e.cfg = next
	return nil
}

// UpdateFeeConfig altera taxa (limitada a 10%) e destinatário.
func (e *Engine) UpdateFeeConfig(ctx context.Context, by string, feeRateBps int64, recipient string) error {
	if err := e.guard.Require(by, access.CapFeeAdmin); err != nil {
		return err
	}
	if feeRateBps < 0 || feeRateBps > MaxFeeRateBps {
		return ErrInvalidFeeRate
	}
	return e.updateConfig(ctx, func(c *model.EngineConfig) {
		c.FeeRateBps = feeRateBps
		if recipient != "" {
			c.FeeRecipient = recipient
		}
	})
}

// Pause suspende novas apostas. Liquidações e reembolsos continuam.
func (e *Engine) Pause(ctx context.Context, by string) error {
	if err := e.guard.Require(by, access.CapFeeAdmin); err != nil {
		return err
	}
	return e.updateConfig(ctx, func(c *model.EngineConfig) { c.Paused = true })
}

func (e *Engine) Unpause(ctx context.Context, by string) error {
	if err := e.guard.Require(by, access.CapFeeAdmin); err != nil {
		return err
	}
	return e.updateConfig(ctx, func(c *model.EngineConfig) { c.Paused = false })
}

// EmergencyWithdraw move fundos ociosos da custódia pro destinatário
// de taxas. Fundos comprometidos com apostas abertas ficam intocados.
func (e *Engine) EmergencyWithdraw(ctx context.Context, by, asset string, amount int64) error {
	if err := e.guard.Require(by, access.CapFeeAdmin); err != nil {
		return err
	}
	custodyBal, err := e.ledger.BalanceOf(ctx, asset, custody.ServiceAccount)
	if err != nil {
		return fmt.Errorf("custody balance: %w", err)
	}
	if amount <= 0 || amount > custodyBal-e.lockedFor(asset) {
		return ErrWithdrawTooLarge
	}
	cfg := e.config()
	if err := e.ledger.Credit(ctx, asset, cfg.FeeRecipient, amount); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	e.log.Info("emergency withdraw",
		zap.String("by", by), zap.String("asset", asset), zap.Int64("amount", amount))
	return nil
}

// UpdateRandomnessConfig troca os parâmetros do provedor de randomness.
func (e *Engine) UpdateRandomnessConfig(ctx context.Context, by string, cfg randomness.Config) error {
	if err := e.guard.Require(by, access.CapOracleAdmin); err != nil {
		return err
	}
	return e.updateConfig(ctx, func(c *model.EngineConfig) { c.Randomness = cfg })
}
