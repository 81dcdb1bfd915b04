package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"courtpulse/internal/app/auction"
	"courtpulse/internal/app/livescore"
	"courtpulse/internal/cleanup"
	"courtpulse/internal/config"
	"courtpulse/internal/realtime"
	"courtpulse/internal/testutil"

	"github.com/jonboulle/clockwork"
)

const testAdminKey = "admin-secret"

type fixture struct {
	ds     *testutil.FakeStore
	rt     *testutil.FlakyRealtime
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ds := testutil.NewFakeStore()
	rt := testutil.NewFlakyRealtime(realtime.NewMemory())
	runner := cleanup.NewRunner(ds, rt)
	worker := cleanup.NewWorker(ds, runner, cleanup.WorkerConfig{}, clockwork.NewFakeClock())
	router := NewRouter(Deps{
		Config:   config.ServerConfig{AdminAPIKey: testAdminKey, RequestTimeoutMS: 2000, CORSAllowedOrigins: []string{"*"}},
		Store:    ds,
		Realtime: rt,
		Scores:   livescore.NewCoordinator(ds, rt, runner),
		Auction:  auction.NewCoordinator(ds, rt, runner),
		Sweeper:  worker,
	})
	return &fixture{ds: ds, rt: rt, router: router}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestScoreAndFinalizeFlow(t *testing.T) {
	f := newFixture(t)
	m := f.ds.AddMatch("")
	base := "/api/matches/" + m.ID

	rec, body := f.do(t, http.MethodPost, base+"/score", map[string]any{"side": "A", "delta": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("score status = %d body=%s", rec.Code, rec.Body.String())
	}
	if body["score_a"] != float64(3) || body["status"] != livescore.StatusLive {
		t.Fatalf("score body = %v", body)
	}

	rec, body = f.do(t, http.MethodPost, base+"/finalize", map[string]any{"score_a": 3, "score_b": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize status = %d body=%s", rec.Code, rec.Body.String())
	}
	if body["winner"] != livescore.WinnerA || body["realtime_synced"] != true {
		t.Fatalf("finalize body = %v", body)
	}

	rec, body = f.do(t, http.MethodPost, base+"/score", map[string]any{"side": "B", "delta": 1})
	if rec.Code != http.StatusConflict || body["error"] != "match_already_finished" {
		t.Fatalf("score after final = %d %v", rec.Code, body)
	}

	rec, body = f.do(t, http.MethodGet, "/api/public/matches/"+m.ID+"/live", nil)
	if rec.Code != http.StatusOK || body["status"] != livescore.StatusFinal {
		t.Fatalf("live view = %d %v", rec.Code, body)
	}
}

func TestScoreValidation(t *testing.T) {
	f := newFixture(t)
	m := f.ds.AddMatch("")
	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"bad side", "/api/matches/" + m.ID + "/score", map[string]any{"side": "C", "delta": 1}, http.StatusBadRequest, "invalid_request"},
		{"missing delta", "/api/matches/" + m.ID + "/score", map[string]any{"side": "A"}, http.StatusBadRequest, "invalid_request"},
		{"malformed", "/api/matches/" + m.ID + "/score", "{", http.StatusBadRequest, "invalid_request"},
		{"unknown field", "/api/matches/" + m.ID + "/score", map[string]any{"side": "A", "delta": 1, "points": 2}, http.StatusBadRequest, "invalid_request"},
		{"unknown match", "/api/matches/nope/score", map[string]any{"side": "A", "delta": 1}, http.StatusNotFound, "not_found"},
		{"negative final", "/api/matches/" + m.ID + "/finalize", map[string]any{"score_a": -1, "score_b": 0}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status || body["error"] != tt.code {
				t.Fatalf("status = %d body = %v, want %d %s", rec.Code, body, tt.status, tt.code)
			}
		})
	}
}

func TestSaleOverCapReportsRemainingPurse(t *testing.T) {
	f := newFixture(t)
	tour := f.ds.AddTournament(1000)
	team := f.ds.AddTeam(tour.ID)
	f.ds.SetPurseSpent(team.ID, 800)
	lot := f.ds.AddLot(tour.ID, 100)

	rec, body := f.do(t, http.MethodPost, "/api/lots/"+lot.ID+"/sold", map[string]any{"team_id": team.ID, "amount": 300})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if body["error"] != "insufficient_funds" || body["remaining_purse"] != float64(200) {
		t.Fatalf("body = %v", body)
	}

	rec, body = f.do(t, http.MethodPost, "/api/lots/"+lot.ID+"/sold", map[string]any{"team_id": team.ID, "amount": 200})
	if rec.Code != http.StatusOK || body["purse_remaining"] != float64(0) {
		t.Fatalf("sale = %d %v", rec.Code, body)
	}

	rec, body = f.do(t, http.MethodPost, "/api/lots/"+lot.ID+"/bids", map[string]any{"team_id": team.ID, "amount": 1})
	if rec.Code != http.StatusConflict || body["error"] != "lot_already_sold" {
		t.Fatalf("bid after sale = %d %v", rec.Code, body)
	}

	rec, body = f.do(t, http.MethodGet, "/api/public/tournaments/"+tour.ID+"/sales", nil)
	items, _ := body["items"].([]any)
	if rec.Code != http.StatusOK || len(items) != 1 {
		t.Fatalf("sales = %d %v", rec.Code, body)
	}
}

func TestRealtimeOutageIsRetryable(t *testing.T) {
	f := newFixture(t)
	tour := f.ds.AddTournament(1000)
	team := f.ds.AddTeam(tour.ID)
	lot := f.ds.AddLot(tour.ID, 100)
	f.rt.SetDown(true)

	rec, body := f.do(t, http.MethodPost, "/api/lots/"+lot.ID+"/bids", map[string]any{"team_id": team.ID, "amount": 150})
	if rec.Code != http.StatusServiceUnavailable || body["error"] != "store_unavailable" {
		t.Fatalf("bid during outage = %d %v", rec.Code, body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}

	rec, body = f.do(t, http.MethodPost, "/api/lots/"+lot.ID+"/sold", map[string]any{"team_id": team.ID, "amount": 150})
	if rec.Code != http.StatusOK || body["realtime_synced"] != false {
		t.Fatalf("sale during outage = %d %v", rec.Code, body)
	}

	rec, body = f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || body["realtime"] != "down" || body["db"] != "up" {
		t.Fatalf("healthz = %d %v", rec.Code, body)
	}
}

func TestAdminCleanupRoutes(t *testing.T) {
	f := newFixture(t)
	tour := f.ds.AddTournament(1000)
	team := f.ds.AddTeam(tour.ID)
	lot := f.ds.AddLot(tour.ID, 100)
	f.rt.SetDown(true)
	if rec, _ := f.do(t, http.MethodPost, "/api/lots/"+lot.ID+"/sold", map[string]any{"team_id": team.ID, "amount": 100}); rec.Code != http.StatusOK {
		t.Fatalf("sale status = %d", rec.Code)
	}

	if rec, _ := f.do(t, http.MethodGet, "/api/admin/cleanups", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	rec, body := f.do(t, http.MethodGet, "/api/admin/cleanups", nil, "X-Admin-Key", testAdminKey)
	items, _ := body["items"].([]any)
	if rec.Code != http.StatusOK || len(items) != 1 {
		t.Fatalf("cleanups = %d %v", rec.Code, body)
	}
	first, _ := items[0].(map[string]any)
	if first["entity_id"] != lot.ID || first["attempts"] != float64(1) {
		t.Fatalf("cleanup item = %v", first)
	}

	f.rt.SetDown(false)
	f.ds.MakeDue()
	rec, body = f.do(t, http.MethodPost, "/api/admin/cleanups/sweep", nil, "Authorization", "Bearer "+testAdminKey)
	if rec.Code != http.StatusOK || body["done"] != float64(1) {
		t.Fatalf("sweep = %d %v", rec.Code, body)
	}

	rec, _ = f.do(t, http.MethodGet, "/api/admin/debug/vars", nil, "X-Admin-Key", testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("debug vars status = %d", rec.Code)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"?limit=10", 10},
		{"?limit=0", 1},
		{"?limit=9999", 500},
		{"?limit=abc", 50},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
		if got := ParseLimit(req, 50, 500); got != tt.want {
			t.Fatalf("ParseLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestPublicRoutesAllowCrossOrigin(t *testing.T) {
	f := newFixture(t)
	tour := f.ds.AddTournament(1000)
	rec, _ := f.do(t, http.MethodGet, "/api/public/tournaments/"+tour.ID+"/sales", nil, "Origin", "https://scoreboard.example")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
