package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/radieske/coinflip-platform-poc/internal/model"
	"github.com/radieske/coinflip-platform-poc/internal/registry"
	"github.com/radieske/coinflip-platform-poc/internal/stats"
)

// Postgres implementa Store em banco Postgres.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) CreateBet(ctx context.Context, b *model.Bet) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bets (id, player, side, asset, amount, fee, payout, outcome, status, token, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		b.ID, b.Player, b.Side, b.Asset, b.Amount, b.Fee, b.Payout, b.Outcome, string(b.Status), b.Token, b.CreatedAt,
	)
	return err
}

func (p *Postgres) scanBet(row *sql.Row) (*model.Bet, error) {
	var b model.Bet
	var status string
	var settledAt sql.NullTime
	err := row.Scan(&b.ID, &b.Player, &b.Side, &b.Asset, &b.Amount, &b.Fee, &b.Payout,
		&b.Outcome, &status, &b.Token, &b.CreatedAt, &settledAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = model.BetStatus(status)
	if settledAt.Valid {
		b.SettledAt = settledAt.Time
	}
	return &b, nil
}

const betColumns = `id, player, side, asset, amount, fee, payout, outcome, status, token, created_at, settled_at`

func (p *Postgres) GetBet(ctx context.Context, id int64) (*model.Bet, error) {
	return p.scanBet(p.db.QueryRowContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE id=$1`, id))
}

func (p *Postgres) GetBetByToken(ctx context.Context, token string) (*model.Bet, error) {
	return p.scanBet(p.db.QueryRowContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE token=$1`, token))
}

func (p *Postgres) FinalizeBet(ctx context.Context, b *model.Bet) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE bets SET status=$1, outcome=$2, settled_at=$3 WHERE id=$4`,
		string(b.Status), b.Outcome, b.SettledAt, b.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

func (p *Postgres) MaxBetID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := p.db.QueryRowContext(ctx, `SELECT MAX(id) FROM bets`).Scan(&max); err != nil {
		return 0, err
	}
	return max.Int64, nil
}

func (p *Postgres) PendingCounts(ctx context.Context) (map[string]int, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT player, COUNT(*) FROM bets WHERE status='REQUESTED' GROUP BY player`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var player string
		var n int
		if err := rows.Scan(&player, &n); err != nil {
			return nil, err
		}
		out[player] = n
	}
	return out, rows.Err()
}

func (p *Postgres) PendingBets(ctx context.Context) ([]*model.Bet, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE status='REQUESTED'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Bet
	for rows.Next() {
		var b model.Bet
		var status string
		var settledAt sql.NullTime
		if err := rows.Scan(&b.ID, &b.Player, &b.Side, &b.Asset, &b.Amount, &b.Fee, &b.Payout,
			&b.Outcome, &status, &b.Token, &b.CreatedAt, &settledAt); err != nil {
			return nil, err
		}
		b.Status = model.BetStatus(status)
		if settledAt.Valid {
			b.SettledAt = settledAt.Time
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveAsset(ctx context.Context, cfg registry.AssetConfig) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO assets (id, symbol, name, decimals, min_wager, max_wager, active, paused, registered_at, registered_by, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			min_wager=EXCLUDED.min_wager,
			max_wager=EXCLUDED.max_wager,
			active=EXCLUDED.active,
			paused=EXCLUDED.paused,
			updated_by=EXCLUDED.updated_by`,
		cfg.ID, cfg.Symbol, cfg.Name, cfg.Decimals, cfg.MinWager, cfg.MaxWager,
		cfg.Active, cfg.Paused, cfg.RegisteredAt, cfg.RegisteredBy, cfg.UpdatedBy,
	)
	return err
}

func (p *Postgres) ListAssets(ctx context.Context) ([]registry.AssetConfig, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, symbol, name, decimals, min_wager, max_wager, active, paused, registered_at, registered_by, updated_by
		FROM assets ORDER BY registered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.AssetConfig
	for rows.Next() {
		var c registry.AssetConfig
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Name, &c.Decimals, &c.MinWager, &c.MaxWager,
			&c.Active, &c.Paused, &c.RegisteredAt, &c.RegisteredBy, &c.UpdatedBy); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// kv_state guarda blobs JSON de estado (stats, config do engine).
func (p *Postgres) saveKV(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO kv_state (key, value, updated_at) VALUES ($1,$2,NOW())
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
		key, b)
	return err
}

func (p *Postgres) loadKV(ctx context.Context, key string, dst any) (bool, error) {
	var b []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE key=$1`, key).Scan(&b)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (p *Postgres) SaveStats(ctx context.Context, s stats.Snapshot) error {
	return p.saveKV(ctx, "stats", s)
}

func (p *Postgres) LoadStats(ctx context.Context) (stats.Snapshot, bool, error) {
	var s stats.Snapshot
	ok, err := p.loadKV(ctx, "stats", &s)
	return s, ok, err
}

func (p *Postgres) SaveEngineConfig(ctx context.Context, cfg model.EngineConfig) error {
	return p.saveKV(ctx, "engine_config", cfg)
}

func (p *Postgres) LoadEngineConfig(ctx context.Context) (model.EngineConfig, bool, error) {
	var cfg model.EngineConfig
	ok, err := p.loadKV(ctx, "engine_config", &cfg)
	return cfg, ok, err
}
