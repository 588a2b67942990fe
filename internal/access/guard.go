package access

import (
	"errors"
	"sync"
)

var ErrUnauthorized = errors.New("operator lacks required capability")

// Capability é um flag aditivo de permissão administrativa.
type Capability string

const (
	CapAssetAdmin  Capability = "asset_admin"  // registrar/desativar/limites/pausa de ativos
	CapFeeAdmin    Capability = "fee_admin"    // taxa, destinatário, pausa global, saque de emergência
	CapOracleAdmin Capability = "oracle_admin" // reconfigurar o provedor de randomness
	CapSuperAdmin  Capability = "super_admin"  // conceder/revogar capacidades
)

// Guard mantém o conjunto de capacidades por operador.
// Sem hierarquia: a checagem é pertencimento simples ao conjunto,
// exceto super_admin que passa em qualquer checagem.
type Guard struct {
	mu    sync.RWMutex
	perms map[string]map[Capability]struct{}
}

// New cria o guard com um super admin inicial.
func New(rootOperator string) *Guard {
	g := &Guard{perms: make(map[string]map[Capability]struct{})}
	g.set(rootOperator, CapSuperAdmin)
	return g
}

func (g *Guard) set(op string, c Capability) {
	if _, ok := g.perms[op]; !ok {
		g.perms[op] = make(map[Capability]struct{})
	}
	g.perms[op][c] = struct{}{}
}

// Require falha com ErrUnauthorized se o operador não tiver a capacidade.
func (g *Guard) Require(operator string, c Capability) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	caps, ok := g.perms[operator]
	if !ok {
		return ErrUnauthorized
	}
	if _, ok := caps[CapSuperAdmin]; ok {
		return nil
	}
	if _, ok := caps[c]; !ok {
		return ErrUnauthorized
	}
	return nil
}

// Grant concede uma capacidade. Só super admins podem conceder.
func (g *Guard) Grant(by, operator string, c Capability) error {
	if err := g.Require(by, CapSuperAdmin); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.set(operator, c)
	return nil
}

// Revoke remove uma capacidade. Só super admins podem revogar.
func (g *Guard) Revoke(by, operator string, c Capability) error {
	if err := g.Require(by, CapSuperAdmin); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if caps, ok := g.perms[operator]; ok {
		delete(caps, c)
		if len(caps) == 0 {
			delete(g.perms, operator)
		}
	}
	return nil
}

// Capabilities lista as capacidades de um operador (cópia).
func (g *Guard) Capabilities(operator string) []Capability {
	g.mu.RLock()
	defer g.mu.RUnlock()
	caps := g.perms[operator]
	out := make([]Capability, 0, len(caps))
	for c := range caps {
		out = append(out, c)
	}
	return out
}
