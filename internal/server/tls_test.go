package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCert writes a self-signed localhost certificate valid in [from, to].
func writeCert(t *testing.T, from, to time.Time) (certFile, keyFile string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    from,
		NotAfter:     to,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestBuildFileTLS(t *testing.T) {
	now := time.Now()

	t.Run("valid", func(t *testing.T) {
		cert, key := writeCert(t, now.Add(-time.Hour), now.Add(time.Hour))
		conf, err := BuildFileTLS(cert, key)
		require.NoError(t, err)
		assert.Len(t, conf.Certificates, 1)
		assert.Contains(t, conf.NextProtos, "h2")
	})
	t.Run("expired", func(t *testing.T) {
		cert, key := writeCert(t, now.Add(-2*time.Hour), now.Add(-time.Hour))
		_, err := BuildFileTLS(cert, key)
		assert.ErrorContains(t, err, "expired")
	})
	t.Run("not yet valid", func(t *testing.T) {
		cert, key := writeCert(t, now.Add(time.Hour), now.Add(2*time.Hour))
		_, err := BuildFileTLS(cert, key)
		assert.ErrorContains(t, err, "not yet valid")
	})
	t.Run("missing key", func(t *testing.T) {
		_, err := BuildFileTLS("cert.pem", "")
		assert.Error(t, err)
	})
}

func TestBuildTLSRequiresSource(t *testing.T) {
	assert.False(t, TLSOptions{}.Enabled())
	assert.True(t, TLSOptions{Domain: "notes.example.com"}.Enabled())
	_, _, err := BuildTLS(context.Background(), TLSOptions{})
	assert.Error(t, err)
	_, _, err = BuildTLS(context.Background(), TLSOptions{Domain: "notes.example.com"})
	assert.ErrorContains(t, err, "storage dir")
}

func TestServeOverTLS(t *testing.T) {
	now := time.Now()
	cert, key := writeCert(t, now.Add(-time.Hour), now.Add(time.Hour))
	conf, _, err := BuildTLS(context.Background(), TLSOptions{CertFile: cert, KeyFile: key})
	require.NoError(t, err)

	h := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: h, ReadHeaderTimeout: time.Second}
	go func() { _ = srv.Serve(tls.NewListener(ln, conf)) }()
	t.Cleanup(func() { _ = srv.Close() })

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
	resp, err := client.Get("https://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}
