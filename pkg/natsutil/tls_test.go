package natsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ssdpradar/pkg/models"
)

// writeSelfSigned writes a self-signed certificate and its key as PEM files.
func writeSelfSigned(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "nats.test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
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

func TestTLSConfigMutual(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t)

	conf, err := TLSConfig(&models.NATSTLSConfig{
		CAFile: certFile, CertFile: certFile, KeyFile: keyFile, ServerName: "nats.test",
	})
	require.NoError(t, err)

	assert.Len(t, conf.Certificates, 1)
	assert.NotNil(t, conf.RootCAs)
	assert.Equal(t, "nats.test", conf.ServerName)
}

func TestTLSConfigServerOnly(t *testing.T) {
	certFile, _ := writeSelfSigned(t)

	conf, err := TLSConfig(&models.NATSTLSConfig{CAFile: certFile})
	require.NoError(t, err)

	assert.Empty(t, conf.Certificates)
	assert.NotNil(t, conf.RootCAs)
}

func TestTLSConfigErrors(t *testing.T) {
	_, err := TLSConfig(nil)
	require.ErrorIs(t, err, ErrTLSNotConfigured)

	_, err = TLSConfig(&models.NATSTLSConfig{KeyFile: "key.pem"})
	require.ErrorIs(t, err, ErrIncompleteKeyPair)

	_, err = TLSConfig(&models.NATSTLSConfig{CertFile: "missing.pem", KeyFile: "missing-key.pem"})
	require.Error(t, err)

	_, err = TLSConfig(&models.NATSTLSConfig{CAFile: filepath.Join(t.TempDir(), "missing.pem")})
	require.Error(t, err)

	bogus := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bogus, []byte("not a certificate"), 0o600))

	_, err = TLSConfig(&models.NATSTLSConfig{CAFile: bogus})
	require.ErrorIs(t, err, ErrCAParsingFailed)
}
