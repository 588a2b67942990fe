package registry

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrDuplicateAsset = errors.New("asset already registered")
	ErrInvalidBounds  = errors.New("invalid wager bounds")
	ErrUnknownAsset   = errors.New("unknown asset")
	ErrProtectedAsset = errors.New("native asset cannot be deactivated")
)

// AssetConfig descreve um ativo apostável e seus limites.
// Valores monetários em unidades base do ativo (ver Decimals).
type AssetConfig struct {
	ID           string
	Symbol       string
	Name         string
	Decimals     int
	MinWager     int64
	MaxWager     int64
	Active       bool
	Paused       bool
	RegisteredAt time.Time
	RegisteredBy string
	UpdatedBy    string // operador da última mutação administrativa
}

// PersistFunc grava a configuração do ativo no armazenamento durável.
// Se falhar, a operação do registry falha sem alterar o estado em memória.
type PersistFunc func(ctx context.Context, cfg AssetConfig) error

// NotifyFunc é chamada após um registro bem-sucedido (evento AssetRegistered).
type NotifyFunc func(cfg AssetConfig)

// Registry mantém os ativos apostáveis. Desativação é soft delete:
// o registro permanece para apostas históricas, mas sai do índice ativo.
type Registry struct {
	mu      sync.RWMutex
	native  string
	assets  map[string]*AssetConfig
	active  []string // ordem de registro
	persist PersistFunc
	notify  NotifyFunc
	now     func() time.Time
}

// New cria o registry já com o ativo nativo registrado. O ativo nativo
// é único e nunca pode ser desativado.
func New(native AssetConfig, persist PersistFunc, notify NotifyFunc) (*Registry, error) {
	if native.MinWager <= 0 || native.MaxWager <= native.MinWager {
		return nil, ErrInvalidBounds
	}
	r := &Registry{
		native:  native.ID,
		assets:  make(map[string]*AssetConfig),
		persist: persist,
		notify:  notify,
		now:     time.Now,
	}
	native.Active = true
	native.Paused = false
	if native.RegisteredAt.IsZero() {
		native.RegisteredAt = r.now()
	}
	r.assets[native.ID] = &native
	r.active = append(r.active, native.ID)
	return r, nil
}

// Restore recoloca um ativo carregado do banco, preservando flags e ordem.
// Usado apenas no boot, antes de aceitar tráfego.
func (r *Registry) Restore(cfg AssetConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[cfg.ID]; ok {
		r.assets[cfg.ID] = &cfg
		return
	}
	r.assets[cfg.ID] = &cfg
	if cfg.Active {
		r.active = append(r.active, cfg.ID)
	}
}

// NativeID retorna o id do ativo nativo.
func (r *Registry) NativeID() string { return r.native }

// Register ativa um novo ativo apostável.
func (r *Registry) Register(ctx context.Context, cfg AssetConfig, by string) error {
	if cfg.MinWager <= 0 || cfg.MaxWager <= cfg.MinWager {
		return ErrInvalidBounds
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.assets[cfg.ID]; ok && existing.Active {
		return ErrDuplicateAsset
	}

	cfg.Active = true
	cfg.Paused = false
	cfg.RegisteredAt = r.now()
	cfg.RegisteredBy = by

	if r.persist != nil {
		if err := r.persist(ctx, cfg); err != nil {
			return err
		}
	}

	r.assets[cfg.ID] = &cfg
	r.active = append(r.active, cfg.ID)

	if r.notify != nil {
		r.notify(cfg)
	}
	return nil
}

// Deactivate remove o ativo do índice ativo (soft delete).
// A ordem dos demais ativos não é garantida após a remoção.
func (r *Registry) Deactivate(ctx context.Context, id, by string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == r.native {
		return ErrProtectedAsset
	}
	a, ok := r.assets[id]
	if !ok || !a.Active {
		return ErrUnknownAsset
	}

	updated := *a
	updated.Active = false
	updated.UpdatedBy = by

	if r.persist != nil {
		if err := r.persist(ctx, updated); err != nil {
			return err
		}
	}

	*a = updated
	for i, aid := range r.active {
		if aid == id {
			// swap-remove: ordem não preservada
			r.active[i] = r.active[len(r.active)-1]
			r.active = r.active[:len(r.active)-1]
			break
		}
	}
	return nil
}

// UpdateBounds altera os limites de aposta de um ativo ativo.
func (r *Registry) UpdateBounds(ctx context.Context, id string, minWager, maxWager int64, by string) error {
	if minWager <= 0 || maxWager <= minWager {
		return ErrInvalidBounds
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok || !a.Active {
		return ErrUnknownAsset
	}

	updated := *a
	updated.MinWager = minWager
	updated.MaxWager = maxWager
	updated.UpdatedBy = by

	if r.persist != nil {
		if err := r.persist(ctx, updated); err != nil {
			return err
		}
	}
	*a = updated
	return nil
}

// SetPaused pausa/despausa apostas em um ativo sem desativá-lo.
func (r *Registry) SetPaused(ctx context.Context, id string, paused bool, by string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets[id]
	if !ok || !a.Active {
		return ErrUnknownAsset
	}

	updated := *a
	updated.Paused = paused
	updated.UpdatedBy = by

	if r.persist != nil {
		if err := r.persist(ctx, updated); err != nil {
			return err
		}
	}
	*a = updated
	return nil
}

// IsWagerable responde se o ativo aceita apostas agora (ativo e não pausado).
func (r *Registry) IsWagerable(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	return ok && a.Active && !a.Paused
}

// Get retorna a configuração de um ativo, incluindo desativados
// (apostas históricas continuam resolvendo a referência).
func (r *Registry) Get(id string) (AssetConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[id]
	if !ok {
		return AssetConfig{}, false
	}
	return *a, true
}

// ListActive retorna os ativos ativos na ordem do índice.
func (r *Registry) ListActive() []AssetConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AssetConfig, 0, len(r.active))
	for _, id := range r.active {
		out = append(out, *r.assets[id])
	}
	return out
}
