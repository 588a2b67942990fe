package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/coinflip-platform-poc/internal/access"
	"github.com/radieske/coinflip-platform-poc/internal/custody"
	"github.com/radieske/coinflip-platform-poc/internal/engine"
	"github.com/radieske/coinflip-platform-poc/internal/randomness"
	"github.com/radieske/coinflip-platform-poc/internal/registry"
	"github.com/radieske/coinflip-platform-poc/internal/shared/metrics"
	"github.com/radieske/coinflip-platform-poc/internal/stats"
)

// operatorHeader identifica o operador nas rotas administrativas.
const operatorHeader = "X-Operator-Id"

// Server expõe a API pública de apostas e a superfície administrativa
// do flip-service.
type Server struct {
	Log    *zap.Logger
	Engine *engine.Engine
	Reg    *registry.Registry
	Guard  *access.Guard
	Stats  *stats.Ledger
	Cache  *StatsCache // opcional
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// apostas
	r.Post("/v1/bets", s.placeBet)
	r.Get("/v1/bets/{id}", s.getBet)
	r.Post("/v1/bets/{id}/refund", s.refundBet)

	// leitura
	r.Get("/v1/assets", s.listAssets)
	r.Get("/v1/assets/{id}", s.getAsset)
	r.Get("/v1/assets/{id}/stats", s.getAssetStats)
	r.Get("/v1/assets/{id}/custody", s.getCustody)
	r.Get("/v1/stats", s.getGlobalStats)
	r.Get("/v1/players/{id}/pending", s.getPending)
	r.Get("/v1/randomness/config", s.getRandomnessConfig)

	// administração (role-gated)
	r.Post("/v1/admin/assets", s.registerAsset)
	r.Delete("/v1/admin/assets/{id}", s.deactivateAsset)
	r.Put("/v1/admin/assets/{id}/bounds", s.updateBounds)
	r.Put("/v1/admin/assets/{id}/paused", s.setAssetPaused)
	r.Put("/v1/admin/fees", s.updateFees)
	r.Post("/v1/admin/pause", s.pauseEngine)
	r.Post("/v1/admin/unpause", s.unpauseEngine)
	r.Post("/v1/admin/withdraw", s.withdraw)
	r.Put("/v1/admin/randomness", s.updateRandomness)
	r.Get("/v1/admin/operators/{id}/capabilities", s.listCapabilities)
	r.Post("/v1/admin/operators/{id}/grant", s.grantCapability)
	r.Post("/v1/admin/operators/{id}/revoke", s.revokeCapability)

	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor mapeia a taxonomia de erros do domínio pra HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrEnginePaused),
		errors.Is(err, engine.ErrInvalidSide),
		errors.Is(err, engine.ErrAssetNotWagerable),
		errors.Is(err, engine.ErrAmountOutOfBounds),
		errors.Is(err, engine.ErrBadAttachedValue),
		errors.Is(err, engine.ErrInvalidFeeRate),
		errors.Is(err, registry.ErrInvalidBounds):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrTooManyPending):
		return http.StatusTooManyRequests
	case errors.Is(err, access.ErrUnauthorized),
		errors.Is(err, engine.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrUnknownBet),
		errors.Is(err, registry.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadySettled),
		errors.Is(err, engine.ErrAlreadyRefunded),
		errors.Is(err, engine.ErrNotEligible),
		errors.Is(err, engine.ErrWithdrawTooLarge),
		errors.Is(err, registry.ErrDuplicateAsset),
		errors.Is(err, registry.ErrProtectedAsset):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInsufficientLiquidity),
		errors.Is(err, custody.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, randomness.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	if req.Player == "" || req.Asset == "" || req.Amount <= 0 {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}

	b, err := s.Engine.PlaceBet(r.Context(), req.Player, req.Side, req.Asset, req.Amount, req.Attached)
	if err != nil {
		st := statusFor(err)
		if st == http.StatusBadRequest || st == http.StatusTooManyRequests {
			metrics.BetsRejected.WithLabelValues(err.Error()).Inc()
		}
		writeErr(w, st, err)
		return
	}

	writeJSON(w, http.StatusCreated, PlaceBetResponse{
		BetID:  b.ID,
		Status: string(b.Status),
		Token:  b.Token,
		Fee:    b.Fee,
		Payout: b.Payout,
	})
}

func betID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	id, err := betID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("bad bet id"))
		return
	}
	b, err := s.Engine.GetBet(r.Context(), id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) refundBet(w http.ResponseWriter, r *http.Request) {
	id, err := betID(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("bad bet id"))
		return
	}
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Player == "" {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}
	if err := s.Engine.RefundIfStale(r.Context(), id, req.Player); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "REFUNDED"})
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Reg.ListActive())
}

func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, ok := s.Reg.Get(id)
	if !ok {
		writeErr(w, http.StatusNotFound, registry.ErrUnknownAsset)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) getAssetStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cached stats.Counters
	if s.Cache != nil {
		if ok, _ := s.Cache.Get(r.Context(), "asset:"+id, &cached); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	c := s.Stats.Asset(id)
	if s.Cache != nil {
		_ = s.Cache.Set(r.Context(), "asset:"+id, c, 10*time.Second)
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) getGlobalStats(w http.ResponseWriter, r *http.Request) {
	var cached StatsResponse
	if s.Cache != nil {
		if ok, _ := s.Cache.Get(r.Context(), "global", &cached); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	resp := StatsResponse{Global: s.Stats.Global()}
	if s.Cache != nil {
		_ = s.Cache.Set(r.Context(), "global", resp, 10*time.Second)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getCustody(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bal, err := s.Engine.CustodyBalance(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, CustodyResponse{Asset: id, Balance: bal})
}

func (s *Server) getPending(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, PendingResponse{Player: player, Pending: s.Engine.PendingCount(player)})
}

func (s *Server) getRandomnessConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.RandomnessConfig())
}

// --- Administração ---

func (s *Server) operator(r *http.Request) string {
	return r.Header.Get(operatorHeader)
}

func (s *Server) registerAsset(w http.ResponseWriter, r *http.Request) {
	op := s.operator(r)
	if err := s.Guard.Require(op, access.CapAssetAdmin); err != nil {
		writeErr(w, http.StatusForbidden, err)
		return
	}
	var req RegisterAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}
	err := s.Reg.Register(r.Context(), registry.AssetConfig{
		ID:       req.ID,
		Symbol:   req.Symbol,
		Name:     req.Name,
		Decimals: req.Decimals,
		MinWager: req.MinWager,
		MaxWager: req.MaxWager,
	}, op)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "REGISTERED"})
}

func (s *Server) deactivateAsset(w http.ResponseWriter, r *http.Request) {
	op := s.operator(r)
	if err := s.Guard.Require(op, access.CapAssetAdmin); err != nil {
		writeErr(w, http.StatusForbidden, err)
		return
	}
	if err := s.Reg.Deactivate(r.Context(), chi.URLParam(r, "id"), op); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "DEACTIVATED"})
}

func (s *Server) updateBounds(w http.ResponseWriter, r *http.Request) {
	op := s.operator(r)
	if err := s.Guard.Require(op, access.CapAssetAdmin); err != nil {
		writeErr(w, http.StatusForbidden, err)
		return
	}
	var req BoundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}
	if err := s.Reg.UpdateBounds(r.Context(), chi.URLParam(r, "id"), req.MinWager, req.MaxWager, op); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "UPDATED"})
}

func (s *Server) setAssetPaused(w http.ResponseWriter, r *http.Request) {
	op := s.operator(r)
	if err := s.Guard.Require(op, access.CapAssetAdmin); err != nil {
		writeErr(w, http.StatusForbidden, err)
		return
	}
	var req PausedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}
	if err := s.Reg.SetPaused(r.Context(), chi.URLParam(r, "id"), req.Paused, op); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

func (s *Server) updateFees(w http.ResponseWriter, r *http.Request) {
	var req FeeConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}
	if err := s.Engine.UpdateFeeConfig(r.Context(), s.operator(r), req.FeeRateBps, req.FeeRecipient); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "UPDATED"})
}

func (s *Server) pauseEngine(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Pause(r.Context(), s.operator(r)); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "PAUSED"})
}

func (s *Server) unpauseEngine(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Unpause(r.Context(), s.operator(r)); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "RUNNING"})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Asset == "" {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}
	if err := s.Engine.EmergencyWithdraw(r.Context(), s.operator(r), req.Asset, req.Amount); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "WITHDRAWN"})
}

// parseCapability valida o nome da capacidade pra não gravar typo no guard.
func parseCapability(name string) (access.Capability, bool) {
	c := access.Capability(name)
	switch c {
	case access.CapAssetAdmin, access.CapFeeAdmin, access.CapOracleAdmin, access.CapSuperAdmin:
		return c, true
	}
	return "", false
}

func (s *Server) listCapabilities(w http.ResponseWriter, r *http.Request) {
	if err := s.Guard.Require(s.operator(r), access.CapSuperAdmin); err != nil {
		writeErr(w, http.StatusForbidden, err)
		return
	}
	target := chi.URLParam(r, "id")
	caps := s.Guard.Capabilities(target)
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, string(c))
	}
	writeJSON(w, http.StatusOK, CapabilitiesResponse{Operator: target, Capabilities: out})
}

func (s *Server) grantCapability(w http.ResponseWriter, r *http.Request) {
	var req CapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}
	c, ok := parseCapability(req.Capability)
	if !ok {
		writeErr(w, http.StatusBadRequest, errors.New("unknown capability"))
		return
	}
	if err := s.Guard.Grant(s.operator(r), chi.URLParam(r, "id"), c); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "GRANTED"})
}

func (s *Server) revokeCapability(w http.ResponseWriter, r *http.Request) {
	var req CapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}
	c, ok := parseCapability(req.Capability)
	if !ok {
		writeErr(w, http.StatusBadRequest, errors.New("unknown capability"))
		return
	}
	if err := s.Guard.Revoke(s.operator(r), chi.URLParam(r, "id"), c); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "REVOKED"})
}

func (s *Server) updateRandomness(w http.ResponseWriter, r *http.Request) {
	var req randomness.Config
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, errors.New("invalid payload"))
		return
	}
	if err := s.Engine.UpdateRandomnessConfig(r.Context(), s.operator(r), req); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "UPDATED"})
}
