package custody

import (
	"context"
	"database/sql"
)

// Postgres implementa Ledger sobre as tabelas custody_accounts e
// custody_ledger. Cada movimentação usa lock pessimista na linha da
// conta e registra entradas append-only no ledger.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) ensureAccount(ctx context.Context, tx *sql.Tx, asset, who string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO custody_accounts(asset, account, balance)
		VALUES ($1,$2,0)
		ON CONFLICT (asset, account) DO NOTHING`, asset, who)
	return err
}

func (p *Postgres) move(ctx context.Context, asset, from, to string, amount int64, op string, checkSource bool) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := p.ensureAccount(ctx, tx, asset, from); err != nil {
		return err
	}
	if err := p.ensureAccount(ctx, tx, asset, to); err != nil {
		return err
	}

	var balance int64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM custody_accounts WHERE asset=$1 AND account=$2 FOR UPDATE`,
		asset, from).Scan(&balance); err != nil {
		return err
	}
	if checkSource && balance < amount {
		if from == ServiceAccount {
			return ErrTransferFailed
		}
		return ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE custody_accounts SET balance = balance - $1 WHERE asset=$2 AND account=$3`,
		amount, asset, from); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE custody_accounts SET balance = balance + $1 WHERE asset=$2 AND account=$3`,
		amount, asset, to); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO custody_ledger(asset, from_account, to_account, amount, operation_type)
		VALUES ($1,$2,$3,$4,$5)`,
		asset, from, to, amount, op); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *Postgres) Debit(ctx context.Context, asset, from string, amount int64) error {
	return p.move(ctx, asset, from, ServiceAccount, amount, "DEBIT", true)
}

func (p *Postgres) Credit(ctx context.Context, asset, to string, amount int64) error {
	return p.move(ctx, asset, ServiceAccount, to, amount, "CREDIT", true)
}

// DepositAttached credita valor nativo que chegou anexado à chamada;
// a origem externa não tem conta de saldo, só o rastro no ledger.
func (p *Postgres) DepositAttached(ctx context.Context, asset, from string, amount int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := p.ensureAccount(ctx, tx, asset, ServiceAccount); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE custody_accounts SET balance = balance + $1 WHERE asset=$2 AND account=$3`,
		amount, asset, ServiceAccount); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO custody_ledger(asset, from_account, to_account, amount, operation_type)
		VALUES ($1,$2,$3,$4,'ATTACHED')`,
		asset, from, ServiceAccount, amount); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *Postgres) BalanceOf(ctx context.Context, asset, who string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM custody_accounts WHERE asset=$1 AND account=$2`,
		asset, who).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}
