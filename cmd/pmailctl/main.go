// Command pmailctl is a small operator tool that health-checks a
// running pmaild node's admin API over mutual TLS.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pmailnet/relaynode/pkg/mtls"
	"github.com/pmailnet/relaynode/pkg/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8443", "node admin API address")
	caFile := flag.String("ca", "", "path to CA certificate")
	certFile := flag.String("cert", "", "path to client certificate")
	keyFile := flag.String("key", "", "path to client private key")
	expectKey := flag.String("expect-key", "", "hex onion public key the node must present (optional)")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	if *caFile == "" || *certFile == "" || *keyFile == "" {
		fmt.Fprintln(os.Stderr, "pmailctl: -ca, -cert, and -key are all required")
		os.Exit(2)
	}

	cfg := &mtls.Config{
		CAFile:   *caFile,
		CertFile: *certFile,
		KeyFile:  *keyFile,
		Timeout:  *timeout,
	}
	if *expectKey != "" {
		raw, err := hex.DecodeString(*expectKey)
		if err != nil || len(raw) != wire.PublicKeySize {
			fmt.Fprintf(os.Stderr, "pmailctl: -expect-key must be %d hex bytes\n", wire.PublicKeySize)
			os.Exit(2)
		}
		var pub wire.PublicKey
		copy(pub[:], raw)
		cfg.ExpectedNodeKey = &pub
	}

	client, err := mtls.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pmailctl: failed to build mTLS client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.HealthCheck(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "pmailctl: %s is unhealthy: %v\n", *addr, err)
		os.Exit(1)
	}

	fmt.Printf("pmailctl: %s is healthy\n", *addr)
}
