// Package statusapi is the read-only operational HTTP surface every
// daemon in this codebase's lineage ships: /health, /metrics, plus a
// couple of debug endpoints specific to alfred (the peer table and
// dataset cache). It is not the local IPC surface -- that remains
// internal/clientipc's narrow callback; this is purely an observability
// window onto the running core, using the same gin+cors+promhttp shape as
// the upstream daemons.
package statusapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/alfredd/internal/alfred"
	"github.com/danmuck/alfredd/internal/observability"
)

// Server exposes a running alfred.Core over HTTP.
type Server struct {
	core      *alfred.Core
	router    *gin.Engine
	addr      string
	startedAt time.Time
}

// New builds a Server bound to core, listening on addr once Run is called.
func New(core *alfred.Core, addr string, corsOrigins []string, logger zerolog.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware("alfredd"))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{core: core, router: r, addr: addr, startedAt: time.Now()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/debug/peers", s.handleDebugPeers)
	s.router.GET("/debug/cache", s.handleDebugCache)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.startedAt).String(),
		"service": "alfredd",
		"mode":    modeLabel(s.core.Mode),
	})
}

func (s *Server) handleDebugPeers(c *gin.Context) {
	type peerView struct {
		Interface string    `json:"interface"`
		HWAddr    string    `json:"hw_addr"`
		Address   string    `json:"address"`
		TQ        uint8     `json:"tq"`
		LastSeen  time.Time `json:"last_seen"`
	}
	var out []peerView
	for _, iface := range s.core.Interfaces {
		for _, p := range iface.Peers.List() {
			out = append(out, peerView{
				Interface: iface.Name,
				HWAddr:    p.HWAddr.String(),
				Address:   p.Address.String(),
				TQ:        p.TQ,
				LastSeen:  p.LastSeen,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"peers": out})
}

func (s *Server) handleDebugCache(c *gin.Context) {
	type datasetView struct {
		SourceMAC string    `json:"source_mac"`
		Type      uint8     `json:"type"`
		Version   uint8     `json:"version"`
		Source    string    `json:"source"`
		Bytes     int       `json:"bytes"`
		LastSeen  time.Time `json:"last_seen"`
	}
	entries := s.core.Cache.Iterate()
	out := make([]datasetView, 0, len(entries))
	for _, d := range entries {
		out = append(out, datasetView{
			SourceMAC: d.SourceMAC.String(),
			Type:      d.Type,
			Version:   d.Version,
			Source:    d.Source.String(),
			Bytes:     len(d.Payload),
			LastSeen:  d.LastSeen,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

// Run blocks serving HTTP on Server's configured address.
func (s *Server) Run() error {
	return s.router.Run(s.addr)
}

func modeLabel(m alfred.OpMode) string {
	if m == alfred.ModeMaster {
		return "master"
	}
	return "slave"
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
