// Package transport serves the introspection registry over HTTP/2 and
// provides the matching client.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"os"

	"golang.org/x/net/http2"
	"golang.org/x/xerrors"
)

// TLSConfig holds one side's mTLS material: its own key pair and the CA that
// signs the peer. All three paths empty selects HTTP/2 over cleartext (h2c).
type TLSConfig struct {
	CertPath string // Path to own certificate
	KeyPath  string // Path to own key
	CAPath   string // Path to CA certificate verifying the peer
}

// Enabled reports whether any TLS path is set.
func (c TLSConfig) Enabled() bool {
	return c.CertPath != "" || c.KeyPath != "" || c.CAPath != ""
}

// Validate checks that either all paths or none are set.
func (c TLSConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.CertPath == "" {
		return xerrors.New("certPath required")
	}
	if c.KeyPath == "" {
		return xerrors.New("keyPath required")
	}
	if c.CAPath == "" {
		return xerrors.New("caPath required")
	}
	return nil
}

// BuildHTTP2Client creates an HTTP/2 client, with mTLS 1.3 when cfg is enabled.
func BuildHTTP2Client(cfg TLSConfig) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Enabled() {
		return &http.Client{Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		}}, nil
	}

	clientCert, caCertPool, err := loadMaterial(cfg)
	if err != nil {
		return nil, err
	}

	// mTLS 1.3 configuration
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS13, // Enforce TLS 1.3
		MaxVersion:   tls.VersionTLS13,
	}

	return &http.Client{
		Transport: &http2.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

// ServerTLSConfig builds the server side of mTLS 1.3. Clients must present a
// certificate signed by cfg.CAPath.
func ServerTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, xerrors.New("TLS paths required")
	}

	serverCert, caCertPool, err := loadMaterial(cfg)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientCAs:    caCertPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
	}, nil
}

// ConfigureTLS switches srv to HTTP/2 over mTLS 1.3. Serve it with
// ListenAndServeTLS("", "") or ServeTLS(l, "", "").
func ConfigureTLS(srv *http.Server, cfg TLSConfig) error {
	tlsConfig, err := ServerTLSConfig(cfg)
	if err != nil {
		return err
	}
	srv.TLSConfig = tlsConfig
	if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
		return xerrors.Errorf("configure HTTP/2: %w", err)
	}
	return nil
}

func loadMaterial(cfg TLSConfig) (tls.Certificate, *x509.CertPool, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return tls.Certificate{}, nil, xerrors.Errorf("load certificate: %w", err)
	}

	caCert, err := os.ReadFile(cfg.CAPath)
	if err != nil {
		return tls.Certificate{}, nil, xerrors.Errorf("read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return tls.Certificate{}, nil, xerrors.New("parse CA certificate")
	}
	return cert, pool, nil
}
