package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caddyserver/certmagic"
)

// TLSOptions selects how the API gets its certificate: ACME for Domain,
// or a PEM pair in CertFile/KeyFile. The zero value means plain HTTP.
type TLSOptions struct {
	Domain     string
	Email      string
	CA         string // empty: Let's Encrypt production
	StorageDir string
	// HTTPChallenge enables HTTP-01; the caller serves the returned handler.
	HTTPChallenge bool

	CertFile string
	KeyFile  string
}

// Enabled reports whether any certificate source is configured.
func (o TLSOptions) Enabled() bool { return o.Domain != "" || o.CertFile != "" }

// BuildTLS returns the TLS config for o. The handler is non-nil only when
// an ACME HTTP-01 challenge responder must be served on port 80.
func BuildTLS(ctx context.Context, o TLSOptions) (*tls.Config, http.Handler, error) {
	switch {
	case o.CertFile != "":
		conf, err := BuildFileTLS(o.CertFile, o.KeyFile)
		return conf, nil, err
	case o.Domain != "":
		return buildACMETLS(ctx, o)
	}
	return nil, nil, errors.New("no certificate source configured")
}

func buildACMETLS(ctx context.Context, o TLSOptions) (*tls.Config, http.Handler, error) {
	if o.StorageDir == "" {
		return nil, nil, errors.New("certificate storage dir is required")
	}
	if err := os.MkdirAll(o.StorageDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("cert storage: %w", err)
	}
	cm := certmagic.NewDefault()
	cm.Storage = &certmagic.FileStorage{Path: o.StorageDir}
	issuer := certmagic.NewACMEIssuer(cm, certmagic.ACMEIssuer{
		CA:                   ifEmpty(o.CA, certmagic.LetsEncryptProductionCA),
		Email:                o.Email,
		Agreed:               true,
		DisableHTTPChallenge: !o.HTTPChallenge,
	})
	cm.Issuers = []certmagic.Issuer{issuer}

	if err := cm.ManageSync(ctx, []string{o.Domain}); err != nil {
		return nil, nil, fmt.Errorf("obtain certificate for %s: %w", o.Domain, err)
	}
	conf := cm.TLSConfig()
	conf.NextProtos = append([]string{"h2", "http/1.1"}, conf.NextProtos...)
	conf.MinVersion = tls.VersionTLS12
	if o.HTTPChallenge {
		return conf, issuer.HTTPChallengeHandler(http.NotFoundHandler()), nil
	}
	return conf, nil, nil
}

func ifEmpty(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// BuildFileTLS loads a certificate from PEM files and rejects chains that
// are expired or not yet valid.
func BuildFileTLS(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, errors.New("both certFile and keyFile are required")
	}

	c, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}

	now := time.Now()
	for i, b := range c.Certificate {
		cert, err := x509.ParseCertificate(b)
		if err != nil {
			return nil, fmt.Errorf("invalid certificate at index %d: %w", i, err)
		}
		if now.Before(cert.NotBefore) {
			return nil, fmt.Errorf("certificate not yet valid (starts %s)", cert.NotBefore)
		}
		if now.After(cert.NotAfter) {
			return nil, fmt.Errorf("certificate expired on %s", cert.NotAfter)
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{c},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
