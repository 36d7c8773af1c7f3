package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/alfredd/internal/alfred"
	"github.com/danmuck/alfredd/internal/clientipc"
	"github.com/danmuck/alfredd/internal/config"
	"github.com/danmuck/alfredd/internal/meshtable"
	"github.com/danmuck/alfredd/internal/netio"
	"github.com/danmuck/alfredd/internal/observability"
	"github.com/danmuck/alfredd/internal/scheduler"
	"github.com/danmuck/alfredd/internal/statusapi"
)

func main() {
	logger := observability.InitLogger("alfredd")

	configPath := "cmd/alfredd/config.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load alfredd config")
	}
	log.Info().Str("path", configPath).Str("mode", cfg.Mode).Msg("loaded alfredd config")

	mode := alfred.ModeSlave
	if cfg.Mode == "master" {
		mode = alfred.ModeMaster
	}

	mcastIP := net.ParseIP(cfg.MulticastIP)
	if mcastIP == nil {
		log.Fatal().Str("multicast_ip", cfg.MulticastIP).Msg("invalid multicast_ip")
	}

	resolver := meshtable.NewResolver()
	loadStaticPeers(resolver, cfg.StaticPeers)
	broker := clientipc.NewBroker()

	core := alfred.NewCore(alfred.Config{
		Mode:                  mode,
		IPv4Mode:              cfg.IPv4Mode,
		MaxPayload:            cfg.MaxPayload,
		Resolver:              resolver,
		OnClientRequestFinish: broker.OnFinish,
	})

	links, err := bindInterfaces(cfg, mcastIP, core)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind interfaces")
	}
	multiSender := &netio.MultiLinkSender{Links: links}
	core.Sender = multiSender

	for _, iface := range core.Interfaces {
		iface.Peers.OnEvict(func(p alfred.Peer) { resolver.Forget(p.Address) })
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, iface := range core.Interfaces {
		link := links[iface.Name]
		go func(iface *alfred.Interface, link *netio.Link) {
			err := link.Run(ctx, func(src net.IP, raw []byte) {
				core.OnFrame(iface, src, raw)
			})
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("interface", iface.Name).Msg("link receive loop exited")
			}
		}(iface, link)
	}

	sched := scheduler.New(core, scheduler.Config{
		AnnounceInterval:  cfg.Announce(),
		SyncInterval:      cfg.Sync(),
		PushLocalInterval: cfg.PushLocal(),
		SweepInterval:     cfg.Sweep(),
		CacheTTL:          cfg.CacheTTL(),
		PeerTTL:           cfg.PeerTTL(),
		TxTTL:             cfg.TxTTL(),
	}, logger)
	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler exited")
		}
	}()

	status := statusapi.New(core, cfg.StatusAddr, cfg.CorsOrigins, logger)
	log.Info().Str("addr", cfg.StatusAddr).Msg("alfredd status api listening")
	if err := status.Run(); err != nil {
		log.Fatal().Err(err).Msg("status api stopped")
	}
}

func bindInterfaces(cfg config.DaemonConfig, mcastIP net.IP, core *alfred.Core) (map[string]*netio.Link, error) {
	links := make(map[string]*netio.Link, len(cfg.Interfaces))
	for _, name := range cfg.Interfaces {
		netIface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", name, err)
		}
		link, err := netio.Dial(netIface, mcastIP, cfg.Port, cfg.IPv4Mode)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", name, err)
		}
		addrs, err := ownAddresses(netIface)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", name, err)
		}
		iface := &alfred.Interface{
			Name:        name,
			OwnAddrs:    addrs,
			ScopeID:     netIface.Index,
			MulticastIP: mcastIP,
			Peers:       alfred.NewPeerTable(),
		}
		core.AddInterface(iface)
		links[name] = link
	}
	return links, nil
}

func loadStaticPeers(resolver *meshtable.Resolver, entries map[string]string) {
	for ipStr, macStr := range entries {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			log.Warn().Str("ip", ipStr).Msg("static_peers: invalid ip, skipping")
			continue
		}
		hw, err := net.ParseMAC(macStr)
		if err != nil {
			log.Warn().Str("mac", macStr).Err(err).Msg("static_peers: invalid mac, skipping")
			continue
		}
		if err := resolver.Set(ip, hw); err != nil {
			log.Warn().Str("ip", ipStr).Str("mac", macStr).Err(err).Msg("static_peers: failed to register")
		}
	}
}

func ownAddresses(iface *net.Interface) ([]net.IP, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}
	out := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			out = append(out, ipNet.IP)
		}
	}
	return out, nil
}
