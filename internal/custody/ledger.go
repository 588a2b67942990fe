package custody

import (
	"context"
	"errors"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferFailed      = errors.New("transfer failed")
)

// ServiceAccount é a conta coletiva de custódia: guarda as apostas em
// aberto e paga os prêmios.
const ServiceAccount = "custody"

// Ledger abstrai a movimentação de valores entre jogadores e a custódia
// do serviço, por ativo. Para o ativo nativo o valor chega junto com a
// chamada (DepositAttached); para os demais é feito pull via Debit.
type Ledger interface {
	// Debit puxa o valor da conta do jogador para a custódia.
	Debit(ctx context.Context, asset, from string, amount int64) error

	// Credit empurra o valor da custódia para a conta destino.
	Credit(ctx context.Context, asset, to string, amount int64) error

	// DepositAttached registra valor nativo que chegou anexado à chamada.
	DepositAttached(ctx context.Context, asset, from string, amount int64) error

	// BalanceOf retorna o saldo de uma conta (use ServiceAccount para custódia).
	BalanceOf(ctx context.Context, asset, who string) (int64, error)
}
