package custody

import (
	"context"
	"errors"
	"testing"
)

func TestDebitMovesToCustody(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.SetBalance("coin", "alice", 1000)

	if err := l.Debit(ctx, "coin", "alice", 400); err != nil {
		t.Fatalf("debit: %v", err)
	}

	if b, _ := l.BalanceOf(ctx, "coin", "alice"); b != 600 {
		t.Errorf("alice = %d, want 600", b)
	}
	if b, _ := l.BalanceOf(ctx, "coin", ServiceAccount); b != 400 {
		t.Errorf("custody = %d, want 400", b)
	}
}

func TestDebitInsufficient(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.SetBalance("coin", "alice", 100)

	err := l.Debit(ctx, "coin", "alice", 101)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
	// falha não muda saldos
	if b, _ := l.BalanceOf(ctx, "coin", "alice"); b != 100 {
		t.Errorf("alice = %d, want 100", b)
	}
}

func TestCreditRequiresCustodyFunds(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	if err := l.Credit(ctx, "coin", "alice", 1); !errors.Is(err, ErrTransferFailed) {
		t.Errorf("err = %v, want ErrTransferFailed", err)
	}

	l.SetBalance("coin", ServiceAccount, 500)
	if err := l.Credit(ctx, "coin", "alice", 300); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if b, _ := l.BalanceOf(ctx, "coin", "alice"); b != 300 {
		t.Errorf("alice = %d, want 300", b)
	}
	if b, _ := l.BalanceOf(ctx, "coin", ServiceAccount); b != 200 {
		t.Errorf("custody = %d, want 200", b)
	}
}

func TestDepositAttached(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	// valor anexado entra direto na custódia, sem tocar a conta do jogador
	if err := l.DepositAttached(ctx, "coin", "alice", 250); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if b, _ := l.BalanceOf(ctx, "coin", ServiceAccount); b != 250 {
		t.Errorf("custody = %d, want 250", b)
	}
	if b, _ := l.BalanceOf(ctx, "coin", "alice"); b != 0 {
		t.Errorf("alice = %d, want 0", b)
	}
}

func TestAssetsAreIsolated(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.SetBalance("coin", "alice", 1000)

	if err := l.Debit(ctx, "usdt", "alice", 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance (saldo de outro ativo)", err)
	}
	if b, _ := l.BalanceOf(ctx, "usdt", "alice"); b != 0 {
		t.Errorf("usdt alice = %d, want 0", b)
	}
}
