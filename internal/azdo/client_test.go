package azdo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, agentStatus string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/_apis/distributedtask/pools", func(w http.ResponseWriter, r *http.Request) {
		_, token, ok := r.BasicAuth()
		if !ok || token != "tok123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 2,
			"value": []Pool{
				{ID: 1, Name: "Azure Pipelines", IsHosted: true},
				{ID: 9, Name: "SelfHostedPool", Size: 1},
			},
		})
	})
	mux.HandleFunc("/_apis/distributedtask/pools/9/agents", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 1,
			"value": []Agent{
				{ID: 42, Name: "agent1", Version: "4.258.1", Enabled: true, Status: agentStatus},
			},
		})
	})
	return httptest.NewServer(mux)
}

func TestPoolByName(t *testing.T) {
	srv := newTestServer(t, "online")
	defer srv.Close()

	c := NewClient(srv.URL, "tok123")
	pool, err := c.PoolByName(t.Context(), "SelfHostedPool")
	if err != nil {
		t.Fatalf("PoolByName() returned error: %v", err)
	}
	if pool.ID != 9 {
		t.Errorf("pool ID = %d, want 9", pool.ID)
	}
}

func TestPoolByNameNotFound(t *testing.T) {
	srv := newTestServer(t, "online")
	defer srv.Close()

	c := NewClient(srv.URL, "tok123")
	if _, err := c.PoolByName(t.Context(), "NoSuchPool"); err == nil {
		t.Error("expected error for unknown pool")
	}
}

func TestAgents(t *testing.T) {
	srv := newTestServer(t, "online")
	defer srv.Close()

	c := NewClient(srv.URL, "tok123")
	agents, err := c.Agents(t.Context(), 9)
	if err != nil {
		t.Fatalf("Agents() returned error: %v", err)
	}
	if len(agents) != 1 || agents[0].Name != "agent1" {
		t.Errorf("Agents() = %v, want single agent1", agents)
	}
	if !agents[0].Online() {
		t.Error("agent should report online")
	}
}

func TestWaitForAgentOnline(t *testing.T) {
	srv := newTestServer(t, "online")
	defer srv.Close()

	c := NewClient(srv.URL, "tok123")
	agent, err := c.WaitForAgentOnline(t.Context(), "SelfHostedPool", "agent1", 3, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForAgentOnline() returned error: %v", err)
	}
	if agent.ID != 42 {
		t.Errorf("agent ID = %d, want 42", agent.ID)
	}
}

func TestWaitForAgentOnlineExhaustsAttempts(t *testing.T) {
	srv := newTestServer(t, "offline")
	defer srv.Close()

	c := NewClient(srv.URL, "tok123")
	if _, err := c.WaitForAgentOnline(t.Context(), "SelfHostedPool", "agent1", 2, time.Millisecond); err == nil {
		t.Error("expected error when the agent never comes online")
	}
}
