package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pmailnet/relaynode/pkg/wire"
)

// Client provides mutual TLS communication with a node's admin API.
type Client struct {
	httpClient *http.Client
	config     *Config
}

// Config holds mTLS configuration.
type Config struct {
	CAFile   string // Path to CA certificate
	CertFile string // Path to client certificate
	KeyFile  string // Path to client private key
	Timeout  time.Duration

	// ExpectedNodeKey, if set, additionally requires that the server's
	// certificate carry this exact onion-routing public key
	// (nodeIdentityOID). This catches the case where an operator
	// points pmailctl at the wrong relay entirely but the CA happens
	// to have signed that relay's cert too.
	ExpectedNodeKey *wire.PublicKey
}

// NewClient creates a new mTLS client for talking to a node's admin API.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Load CA certificate
	caCert, err := os.ReadFile(config.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append CA certificate")
	}

	// Load client certificate and key
	cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	// Configure TLS
	tlsConfig := &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_CHACHA20_POLY1305_SHA256,
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_AES_128_GCM_SHA256,
		},
	}

	if config.ExpectedNodeKey != nil {
		want := *config.ExpectedNodeKey
		tlsConfig.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return fmt.Errorf("no peer certificate presented")
			}
			got, ok := ExtractNodePublicKey(cs.PeerCertificates[0])
			if !ok {
				return fmt.Errorf("peer certificate carries no node identity")
			}
			if got != want {
				return fmt.Errorf("peer node identity %x does not match expected %x", got, want)
			}
			return nil
		}
	}

	// Set default timeout if not specified
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// Create HTTP client with mTLS
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig:     tlsConfig,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		httpClient: httpClient,
		config:     config,
	}, nil
}

// HealthCheck checks whether a node's admin API reports healthy.
func (c *Client) HealthCheck(nodeAddress string) error {
	url := fmt.Sprintf("https://%s/healthz", nodeAddress)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// Close closes the client and cleans up resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
