package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/coinflip-platform-poc/internal/access"
	"github.com/radieske/coinflip-platform-poc/internal/custody"
	"github.com/radieske/coinflip-platform-poc/internal/engine"
	"github.com/radieske/coinflip-platform-poc/internal/registry"
	"github.com/radieske/coinflip-platform-poc/internal/stats"
	"github.com/radieske/coinflip-platform-poc/internal/store"
)

type fakePort struct {
	mu sync.Mutex
	n  int
}

func (p *fakePort) RequestOne(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return fmt.Sprintf("tok-%d", p.n), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemory()
	ledger := custody.NewMemoryLedger()
	ledger.SetBalance("coin", custody.ServiceAccount, 10_000_000)

	reg, err := registry.New(registry.AssetConfig{
		ID: "coin", Symbol: "COIN", Name: "Native Coin", Decimals: 3,
		MinWager: 100, MaxWager: 1_000_000,
	}, st.SaveAsset, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	sl := stats.NewLedger()
	guard := access.New("root")

	eng, err := engine.New(ctx, zap.NewNop(), st, reg, ledger, &fakePort{}, sl, guard, nil, engine.Params{
		MaxPending:   5,
		StaleTimeout: time.Hour,
		FeeRateBps:   200,
		FeeRecipient: "treasury",
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	srv := &Server{
		Log:    zap.NewNop(),
		Engine: eng,
		Reg:    reg,
		Guard:  guard,
		Stats:  sl,
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, eng
}

func doJSON(t *testing.T, method, url string, body any, operator string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if operator != "" {
		req.Header.Set("X-Operator-Id", operator)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func TestPlaceBetEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/bets", PlaceBetRequest{
		Player: "alice", Side: 0, Asset: "coin", Amount: 1000, Attached: 1000,
	}, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var out PlaceBetResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.BetID != 1 || out.Status != "REQUESTED" || out.Token == "" {
		t.Errorf("resp = %+v", out)
	}
	if out.Fee != 20 || out.Payout != 1980 { // 2% de 1000
		t.Errorf("fee/payout = %d/%d, want 20/1980", out.Fee, out.Payout)
	}
}

func TestPlaceBetValidationStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	cases := []struct {
		name string
		req  PlaceBetRequest
		want int
	}{
		{"bad side", PlaceBetRequest{Player: "a", Side: 2, Asset: "coin", Amount: 1000, Attached: 1000}, http.StatusBadRequest},
		{"unknown asset", PlaceBetRequest{Player: "a", Side: 0, Asset: "doge", Amount: 1000}, http.StatusBadRequest},
		{"below min", PlaceBetRequest{Player: "a", Side: 0, Asset: "coin", Amount: 50, Attached: 50}, http.StatusBadRequest},
		{"attached mismatch", PlaceBetRequest{Player: "a", Side: 0, Asset: "coin", Amount: 1000, Attached: 999}, http.StatusBadRequest},
		{"empty player", PlaceBetRequest{Side: 0, Asset: "coin", Amount: 1000, Attached: 1000}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/bets", tc.req, "")
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d, body = %s", resp.StatusCode, tc.want, body)
			}
		})
	}
}

func TestPendingLimitReturns429(t *testing.T) {
	ts, _ := newTestServer(t)

	bet := PlaceBetRequest{Player: "alice", Side: 0, Asset: "coin", Amount: 1000, Attached: 1000}
	for i := 0; i < 5; i++ {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/bets", bet, "")
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("bet %d: status = %d, body = %s", i, resp.StatusCode, body)
		}
	}
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/bets", bet, "")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestGetBet(t *testing.T) {
	ts, _ := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/v1/bets", PlaceBetRequest{
		Player: "alice", Side: 1, Asset: "coin", Amount: 1000, Attached: 1000,
	}, "")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/bets/1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var b struct {
		Player string `json:"player"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(body, &b)
	if b.Player != "alice" || b.Status != "REQUESTED" {
		t.Errorf("bet = %+v", b)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/bets/999", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing bet status = %d, want 404", resp.StatusCode)
	}
}

func TestRefundBeforeTimeoutConflicts(t *testing.T) {
	ts, _ := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/v1/bets", PlaceBetRequest{
		Player: "alice", Side: 0, Asset: "coin", Amount: 1000, Attached: 1000,
	}, "")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/bets/1/refund", RefundRequest{Player: "alice"}, "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409 (ainda não elegível)", resp.StatusCode)
	}
	// quem não é dono recebe 403 antes mesmo da checagem de idade
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/bets/1/refund", RefundRequest{Player: "mallory"}, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestSettledBetVisibleViaAPI(t *testing.T) {
	ts, eng := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/bets", PlaceBetRequest{
		Player: "alice", Side: 0, Asset: "coin", Amount: 1000, Attached: 1000,
	}, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("place: %d", resp.StatusCode)
	}
	var placed PlaceBetResponse
	_ = json.Unmarshal(body, &placed)

	// entrega do oráculo por fora da API
	if err := eng.OnRandomness(context.Background(), placed.Token, []byte{4}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	_, body = doJSON(t, http.MethodGet, ts.URL+"/v1/bets/1", nil, "")
	var b struct {
		Status  string `json:"status"`
		Outcome int    `json:"outcome"`
	}
	_ = json.Unmarshal(body, &b)
	if b.Status != "SETTLED" || b.Outcome != 0 {
		t.Errorf("bet = %+v", b)
	}
}

func TestAdminRequiresOperator(t *testing.T) {
	ts, _ := newTestServer(t)

	asset := RegisterAssetRequest{
		ID: "usdt", Symbol: "USDT", Name: "Tether", Decimals: 6,
		MinWager: 1000, MaxWager: 500_000,
	}

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/assets", asset, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("no operator: status = %d, want 403", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/assets", asset, "mallory")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("unknown operator: status = %d, want 403", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/assets", asset, "root")
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("root: status = %d, want 201", resp.StatusCode)
	}
	// duplicata vira conflito
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/assets", asset, "root")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate: status = %d, want 409", resp.StatusCode)
	}
}

func TestAdminFeeUpdate(t *testing.T) {
	ts, eng := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/v1/admin/fees", FeeConfigRequest{FeeRateBps: 500}, "root")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cfg := eng.Config(); cfg.FeeRateBps != 500 {
		t.Errorf("fee = %d, want 500", cfg.FeeRateBps)
	}

	// acima do teto é rejeitado
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/v1/admin/fees", FeeConfigRequest{FeeRateBps: 1001}, "root")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAdminPauseBlocksBets(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/pause", nil, "root")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause: %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/bets", PlaceBetRequest{
		Player: "alice", Side: 0, Asset: "coin", Amount: 1000, Attached: 1000,
	}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bet while paused: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/unpause", nil, "root")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unpause: %d", resp.StatusCode)
	}
}

func TestListAssetsAndStats(t *testing.T) {
	ts, _ := newTestServer(t)

	doJSON(t, http.MethodPost, ts.URL+"/v1/bets", PlaceBetRequest{
		Player: "alice", Side: 0, Asset: "coin", Amount: 1000, Attached: 1000,
	}, "")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/assets", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assets: %d", resp.StatusCode)
	}
	var assets []registry.AssetConfig
	_ = json.Unmarshal(body, &assets)
	if len(assets) != 1 || assets[0].ID != "coin" {
		t.Errorf("assets = %+v", assets)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/stats", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: %d", resp.StatusCode)
	}
	var sr StatsResponse
	_ = json.Unmarshal(body, &sr)
	if sr.Global.GamesPlayed != 1 || sr.Global.Volume != 1000 {
		t.Errorf("stats = %+v", sr.Global)
	}

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/v1/players/alice/pending", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending: %d", resp.StatusCode)
	}
	var pr PendingResponse
	_ = json.Unmarshal(body, &pr)
	if pr.Pending != 1 {
		t.Errorf("pending = %d, want 1", pr.Pending)
	}
}

func TestGrantAndRevokeCapability(t *testing.T) {
	ts, _ := newTestServer(t)

	asset := RegisterAssetRequest{
		ID: "usdt", Symbol: "USDT", Name: "Tether", Decimals: 6,
		MinWager: 1000, MaxWager: 500_000,
	}

	// ops ainda não pode registrar ativos
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/assets", asset, "ops")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("before grant: status = %d, want 403", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/operators/ops/grant",
		CapabilityRequest{Capability: "asset_admin"}, "root")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("grant: status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/assets", asset, "ops")
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("after grant: status = %d, want 201", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/admin/operators/ops/capabilities", nil, "root")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("capabilities: status = %d", resp.StatusCode)
	}
	var caps CapabilitiesResponse
	_ = json.Unmarshal(body, &caps)
	if len(caps.Capabilities) != 1 || caps.Capabilities[0] != "asset_admin" {
		t.Errorf("caps = %+v", caps)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/operators/ops/revoke",
		CapabilityRequest{Capability: "asset_admin"}, "root")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke: status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/admin/assets/usdt", nil, "ops")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("after revoke: status = %d, want 403", resp.StatusCode)
	}
}

func TestGrantRequiresSuperAdmin(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/operators/friend/grant",
		CapabilityRequest{Capability: "fee_admin"}, "mallory")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}

	// capacidade inexistente é rejeitada antes do guard
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/operators/friend/grant",
		CapabilityRequest{Capability: "god_mode"}, "root")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestWithdrawEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/admin/withdraw",
		WithdrawRequest{Asset: "coin", Amount: 100_000_000}, "root")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("oversized: status = %d, want 409", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/admin/withdraw",
		WithdrawRequest{Asset: "coin", Amount: 1000}, "root")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
