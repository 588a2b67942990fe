package custody

import (
	"context"
	"sync"
)

// MemoryLedger implementa Ledger em memória. Usado em testes e em
// desenvolvimento local, sem persistência.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]map[string]int64 // asset -> account -> saldo
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]map[string]int64)}
}

func (m *MemoryLedger) accounts(asset string) map[string]int64 {
	accs, ok := m.balances[asset]
	if !ok {
		accs = make(map[string]int64)
		m.balances[asset] = accs
	}
	return accs
}

// SetBalance define o saldo inicial de uma conta (setup de teste/dev).
func (m *MemoryLedger) SetBalance(asset, who string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts(asset)[who] = amount
}

func (m *MemoryLedger) Debit(_ context.Context, asset, from string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	accs := m.accounts(asset)
	if accs[from] < amount {
		return ErrInsufficientBalance
	}
	accs[from] -= amount
	accs[ServiceAccount] += amount
	return nil
}

func (m *MemoryLedger) Credit(_ context.Context, asset, to string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	accs := m.accounts(asset)
	if accs[ServiceAccount] < amount {
		return ErrTransferFailed
	}
	accs[ServiceAccount] -= amount
	accs[to] += amount
	return nil
}

func (m *MemoryLedger) DepositAttached(_ context.Context, asset, from string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts(asset)[ServiceAccount] += amount
	return nil
}

func (m *MemoryLedger) BalanceOf(_ context.Context, asset, who string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts(asset)[who], nil
}
