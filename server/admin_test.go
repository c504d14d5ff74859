package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coopserver/config"
	"coopserver/store"
)

func newAdminServer() *Server {
	return New(config.Default(), store.NewMemory(), nil)
}

func TestAdminConfigGetAndUpdate(t *testing.T) {
	srv := newAdminServer()

	rr := httptest.NewRecorder()
	srv.HandleAdminConfig(rr, httptest.NewRequest(http.MethodGet, "/admin/config", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var cur SettingsValues
	if err := json.Unmarshal(rr.Body.Bytes(), &cur); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cur.InstanceCapacity != config.DefaultInstanceCapacity {
		t.Fatalf("unexpected capacity: %+v", cur)
	}

	rr = httptest.NewRecorder()
	body := strings.NewReader(`{"instanceCapacity":2,"violationsBeforeBan":3}`)
	srv.HandleAdminConfig(rr, httptest.NewRequest(http.MethodPost, "/admin/config", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", rr.Code, rr.Body.String())
	}
	v := srv.Settings().Values()
	if v.InstanceCapacity != 2 || v.ViolationsBeforeBan != 3 || v.MaxDisplacement != config.DefaultMaxDisplacement {
		t.Fatalf("partial update not applied: %+v", v)
	}
}

func TestAdminConfigRejectsBadInput(t *testing.T) {
	srv := newAdminServer()
	for _, tc := range []struct {
		method string
		body   string
		want   int
	}{
		{http.MethodPost, `{"instanceCapacity":0}`, http.StatusBadRequest},
		{http.MethodPost, `{"maxDisplacement":-1}`, http.StatusBadRequest},
		{http.MethodPost, `not json`, http.StatusBadRequest},
		{http.MethodDelete, ``, http.StatusMethodNotAllowed},
	} {
		rr := httptest.NewRecorder()
		srv.HandleAdminConfig(rr, httptest.NewRequest(tc.method, "/admin/config", strings.NewReader(tc.body)))
		if rr.Code != tc.want {
			t.Fatalf("%s %s: got %d want %d", tc.method, tc.body, rr.Code, tc.want)
		}
	}
	if srv.Settings().InstanceCapacity() != config.DefaultInstanceCapacity {
		t.Fatalf("rejected update changed settings")
	}
}

func TestAdminGamesListsInstances(t *testing.T) {
	srv := newAdminServer()
	g, err := srv.Manager().Match(newTestSession("a", "Alpha", 0), MatchMode{Kind: MatchPrivate})
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	rr := httptest.NewRecorder()
	srv.HandleGames(rr, httptest.NewRequest(http.MethodGet, "/admin/games", nil))
	var resp struct {
		Games []InstanceSnapshot `json:"games"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Games) != 1 {
		t.Fatalf("expected one game, got %+v", resp.Games)
	}
	got := resp.Games[0]
	if got.ID != g.ID || got.JoinCode != g.JoinCode || !got.Private || len(got.Players) != 1 || got.Players[0] != "Alpha" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.incViolation(ReasonNegative)
	m.setInstances(2)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rr.Body.String()
	for _, want := range []string{
		`coop_anticheat_violations_total{reason="negative_position"} 1`,
		"coop_instances_active 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
