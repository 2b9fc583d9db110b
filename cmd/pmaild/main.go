// Command pmaild runs one onion-relay node: it loads configuration and
// a key pair, joins the DHT, listens for onion packets over UDP, and
// serves a read-only admin HTTP surface - the node orchestrator the
// original's start_static_node described as a standalone process.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/pmailnet/relaynode/pkg/adminapi"
	"github.com/pmailnet/relaynode/pkg/config"
	"github.com/pmailnet/relaynode/pkg/dht"
	"github.com/pmailnet/relaynode/pkg/keystore"
	"github.com/pmailnet/relaynode/pkg/metrics"
	"github.com/pmailnet/relaynode/pkg/mtls"
	"github.com/pmailnet/relaynode/pkg/relay"
	"github.com/pmailnet/relaynode/pkg/transport/udp"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pmaild %s (built %s)\n", Version, BuildTime)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("pmaild: failed to load config: %v", err)
	}

	keyFile := cfg.KeyFile
	if keyFile == "" {
		keyFile = keystore.DefaultFileName()
		if home, err := os.UserHomeDir(); err == nil {
			keyFile = filepath.Join(home, keyFile)
		}
	}
	myKey, err := keystore.LoadOrGenerate(keyFile)
	if err != nil {
		log.Fatalf("pmaild: failed to load key pair: %v", err)
	}
	log.Printf("pmaild: node public key %s", myKey.Public)

	var table *dht.Table
	if len(cfg.BootstrapPeers) > 0 {
		bootstrap, err := config.ParseBootstrapPeers(cfg.BootstrapPeers)
		if err != nil {
			log.Fatalf("pmaild: bad bootstrap_peers: %v", err)
		}
		table = dht.NewWithBootstrap(myKey, bootstrap)
	} else {
		table = dht.New(myKey)
	}

	listenAddr, err := netip.ParseAddrPort(cfg.ListenAddress)
	if err != nil {
		log.Fatalf("pmaild: bad listen_address %q: %v", cfg.ListenAddress, err)
	}
	conn, err := udp.Listen(listenAddr)
	if err != nil {
		log.Fatalf("pmaild: failed to listen on %s: %v", listenAddr, err)
	}
	defer conn.Close()
	log.Printf("pmaild: listening on %s", conn.LocalAddr())

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	limiter := relay.NewSourceLimiter(rate.Limit(20), 40)
	var recorder relay.Recorder
	if m != nil {
		recorder = m
	}
	handler := relay.NewHandler(table, conn, limiter, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handler.Run()
	go relay.RunMaintenanceLoop(ctx, table, conn)

	ttl := time.Duration(cfg.OnionboxenTTLSeconds) * time.Second
	stopSweeper := make(chan struct{})
	table.RunSweeper(ttl/2, ttl, stopSweeper)
	defer close(stopSweeper)

	if m != nil {
		go reportGauges(ctx, table, limiter, m)
	}

	var adminSrv *adminapi.Server
	if cfg.AdminAPI.Enabled {
		adminAddr, err := netip.ParseAddrPort(cfg.AdminAPI.Address)
		if err != nil {
			log.Fatalf("pmaild: bad admin_api.address %q: %v", cfg.AdminAPI.Address, err)
		}

		var tlsConfig *tls.Config
		if cfg.AdminAPI.CertFile != "" && cfg.AdminAPI.KeyFile != "" {
			if err := mtls.EnsureNodeIdentity(cfg.AdminAPI.CertFile, cfg.AdminAPI.KeyFile, myKey, adminAddr); err != nil {
				log.Fatalf("pmaild: failed to provision admin API identity: %v", err)
			}
			cert, err := tls.LoadX509KeyPair(cfg.AdminAPI.CertFile, cfg.AdminAPI.KeyFile)
			if err != nil {
				log.Fatalf("pmaild: failed to load admin API certificate: %v", err)
			}
			tlsConfig = &tls.Config{
				MinVersion:   tls.VersionTLS13,
				Certificates: []tls.Certificate{cert},
			}
			if cfg.AdminAPI.CAFile != "" {
				caCert, err := mtls.LoadCertificate(cfg.AdminAPI.CAFile)
				if err != nil {
					log.Fatalf("pmaild: failed to load admin API CA: %v", err)
				}
				pool := x509.NewCertPool()
				pool.AddCert(caCert)
				tlsConfig.ClientCAs = pool
				tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
			}
		}
		adminSrv = adminapi.New(cfg.AdminAPI.Address, table, m, tlsConfig)
		errc := adminSrv.Start()
		go func() {
			if err, ok := <-errc; ok && err != nil {
				log.Fatalf("pmaild: admin API failed: %v", err)
			}
		}()
		log.Printf("pmaild: admin API on %s", cfg.AdminAPI.Address)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Println("pmaild: shutting down")

	cancel()
	if adminSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("pmaild: admin API shutdown error: %v", err)
		}
	}
}

// reportGauges keeps the DHT-size, outstanding-onionbox, and
// rate-limit-bucket gauges fresh for /metrics scrapes.
func reportGauges(ctx context.Context, table *dht.Table, limiter *relay.SourceLimiter, m *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetDHTSize(table.Size())
			m.SetOutstandingSize(table.OutstandingCount())
			m.SetRateLimitBuckets(limiter.Size())
		}
	}
}
