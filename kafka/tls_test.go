package kafka

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io/ioutil"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/catalogkit/mdk"
)

// writeKeyPair writes a self signed certificate and its key into dir.
func writeKeyPair(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "mdk-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshalling key: %v", err)
	}
	certPath = filepath.Join(dir, "client.crt")
	keyPath = filepath.Join(dir, "client.key")
	if err := ioutil.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatal(err)
	}
	return certPath, keyPath
}

func TestGetTLSConfig(t *testing.T) {
	conf, err := GetTLSConfig(&TLSConfig{}, nil)
	if err != nil || conf != nil {
		t.Fatalf("empty config should give no tls: %v %v", conf, err)
	}

	dir := t.TempDir()
	certPath, keyPath := writeKeyPair(t, dir)
	conf, err = GetTLSConfig(&TLSConfig{CertificatePath: certPath, CertificateKeyPath: keyPath, CACertPath: certPath}, mdk.NopLogger{})
	if err != nil {
		t.Fatalf("GetTLSConfig: %v", err)
	}
	if conf.RootCAs == nil || conf.GetClientCertificate == nil {
		t.Fatalf("expected roots and a client certificate: %#v", conf)
	}
	cert, err := conf.GetClientCertificate(nil)
	if err != nil || cert == nil {
		t.Fatalf("client certificate: %v %v", cert, err)
	}

	bad := filepath.Join(dir, "bad.pem")
	if err := ioutil.WriteFile(bad, []byte("not a certificate"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := GetTLSConfig(&TLSConfig{CACertPath: bad}, nil); err == nil {
		t.Fatal("expected an error for an unparseable CA certificate")
	}
	if _, err := GetTLSConfig(&TLSConfig{CertificatePath: certPath}, nil); err == nil {
		t.Fatal("expected an error for a certificate without a key")
	}
}
