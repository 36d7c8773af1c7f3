// Package config loads the daemon's TOML configuration file: which
// interfaces to bind, the multicast group/port, the four scheduler
// intervals, and the debug HTTP surface's listen address, adapted from
// the upstream daemons' config-loading shape.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DaemonConfig is the root of cmd/alfredd's config file.
type DaemonConfig struct {
	Mode        string   `toml:"mode"`
	Interfaces  []string `toml:"interfaces"`
	IPv4Mode    bool     `toml:"ipv4_mode"`
	Port        int      `toml:"port"`
	MulticastIP string   `toml:"multicast_ip"`
	MaxPayload  int      `toml:"max_payload"`

	AnnounceIntervalMS  int `toml:"announce_interval_ms"`
	SyncIntervalMS      int `toml:"sync_interval_ms"`
	PushLocalIntervalMS int `toml:"push_local_interval_ms"`
	SweepIntervalMS     int `toml:"sweep_interval_ms"`

	CacheTTLSec int `toml:"cache_ttl_s"`
	PeerTTLSec  int `toml:"peer_ttl_s"`
	TxTTLSec    int `toml:"tx_ttl_s"`

	StatusAddr  string   `toml:"status_addr"`
	CorsOrigins []string `toml:"cors_origins"`

	// StaticPeers maps a peer IP to its hardware address for sources the
	// EUI-64 derivation can't cover (plain IPv4 peers, non-EUI-64 IPv6).
	StaticPeers map[string]string `toml:"static_peers"`
}

// Load reads and validates a DaemonConfig from path, filling in the same
// sort of defaults the upstream daemon binaries apply when a field is
// left empty.
func Load(path string) (DaemonConfig, error) {
	var cfg DaemonConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return DaemonConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DaemonConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *DaemonConfig) {
	if strings.TrimSpace(cfg.Mode) == "" {
		cfg.Mode = "slave"
	}
	if cfg.Port == 0 {
		cfg.Port = 0x4242
	}
	if strings.TrimSpace(cfg.MulticastIP) == "" {
		cfg.MulticastIP = "ff02::1"
	}
	if cfg.MaxPayload == 0 {
		cfg.MaxPayload = 1500
	}
	if cfg.AnnounceIntervalMS == 0 {
		cfg.AnnounceIntervalMS = 10000
	}
	if cfg.SyncIntervalMS == 0 {
		cfg.SyncIntervalMS = 5000
	}
	if cfg.PushLocalIntervalMS == 0 {
		cfg.PushLocalIntervalMS = 5000
	}
	if cfg.SweepIntervalMS == 0 {
		cfg.SweepIntervalMS = 30000
	}
	if cfg.CacheTTLSec == 0 {
		cfg.CacheTTLSec = 600
	}
	if cfg.PeerTTLSec == 0 {
		cfg.PeerTTLSec = 60
	}
	if cfg.TxTTLSec == 0 {
		cfg.TxTTLSec = 30
	}
	if strings.TrimSpace(cfg.StatusAddr) == "" {
		cfg.StatusAddr = ":9242"
	}
}

// Validate checks the fields Load can't default its way out of.
func Validate(cfg DaemonConfig) error {
	if cfg.Mode != "master" && cfg.Mode != "slave" {
		return fmt.Errorf("config: mode must be \"master\" or \"slave\", got %q", cfg.Mode)
	}
	if len(cfg.Interfaces) == 0 {
		return fmt.Errorf("config: at least one interface is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("config: port out of range: %d", cfg.Port)
	}
	return nil
}

// Announce, Sync, PushLocal, and Sweep return the configured scheduler
// intervals as time.Durations, the form internal/scheduler actually wants.
func (c DaemonConfig) Announce() time.Duration {
	return time.Duration(c.AnnounceIntervalMS) * time.Millisecond
}

func (c DaemonConfig) Sync() time.Duration {
	return time.Duration(c.SyncIntervalMS) * time.Millisecond
}

func (c DaemonConfig) PushLocal() time.Duration {
	return time.Duration(c.PushLocalIntervalMS) * time.Millisecond
}

func (c DaemonConfig) Sweep() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

func (c DaemonConfig) CacheTTL() time.Duration { return time.Duration(c.CacheTTLSec) * time.Second }
func (c DaemonConfig) PeerTTL() time.Duration  { return time.Duration(c.PeerTTLSec) * time.Second }
func (c DaemonConfig) TxTTL() time.Duration    { return time.Duration(c.TxTTLSec) * time.Second }
