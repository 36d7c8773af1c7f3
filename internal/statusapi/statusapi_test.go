package statusapi

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/danmuck/alfredd/internal/alfred"
)

type noopSender struct{}

func (noopSender) SendFrame(*alfred.Interface, net.IP, []byte) error { return nil }

type noopResolver struct{}

func (noopResolver) ResolveMAC(*alfred.Interface, net.IP) (alfred.MAC, bool) {
	return alfred.MAC{}, false
}

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	core := alfred.NewCore(alfred.Config{Mode: alfred.ModeMaster, Sender: noopSender{}, Resolver: noopResolver{}})
	iface := &alfred.Interface{Name: "eth0", Peers: alfred.NewPeerTable()}
	core.AddInterface(iface)
	iface.Peers.OnAnnounce(alfred.MAC{1, 2, 3, 4, 5, 6}, net.ParseIP("fe80::1"), time.Now())
	core.Cache.UpsertLocal(alfred.MAC{9, 9, 9, 9, 9, 9}, 42, 1, []byte("payload"), time.Now())
	return New(core, ":0", nil, zerolog.Nop())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["mode"] != "master" {
		t.Fatalf("expected mode=master, got %v", body["mode"])
	}
}

func TestDebugPeersEndpoint(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/debug/peers", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Peers []map[string]any `json:"peers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.Peers) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(body.Peers))
	}
}

func TestDebugCacheEndpoint(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/debug/cache", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Entries []map[string]any `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.Entries) != 1 {
		t.Fatalf("expected 1 cache entry, got %d", len(body.Entries))
	}
}
