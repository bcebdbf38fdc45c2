package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/catalogkit/mdk"
	"github.com/pkg/errors"
)

// TLSConfig holds the client TLS settings for talking to brokers.
type TLSConfig struct {
	// CertificatePath is the client certificate (.crt or .pem file).
	CertificatePath string `help:"Path to client certificate file."`
	// CertificateKeyPath is the client certificate key (.key file).
	CertificateKeyPath string `help:"Path to client certificate key file."`
	// CACertPath is a CA certificate (.crt or .pem file) to verify brokers with.
	CACertPath string `help:"Path to CA certificate file."`
	// SkipVerify disables verification of broker certificates.
	SkipVerify bool `help:"Disables verification of broker certificates."`
}

// Enabled reports whether any TLS setting is present.
func (c TLSConfig) Enabled() bool {
	return c.CertificatePath != "" || c.CACertPath != "" || c.SkipVerify
}

type keypairReloader struct {
	certMu   sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
}

// newKeypairReloader loads a key pair and reloads it whenever the process
// gets SIGHUP.
func newKeypairReloader(certPath, keyPath string, log mdk.Logger) (*keypairReloader, error) {
	result := &keypairReloader{
		certPath: certPath,
		keyPath:  keyPath,
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	result.cert = &cert
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP)
		for range c {
			log.Printf("received SIGHUP, reloading TLS certificate and key from %q and %q", certPath, keyPath)
			if err := result.maybeReload(); err != nil {
				log.Printf("keeping old TLS certificate because the new one could not be loaded: %v", err)
			}
		}
	}()
	return result, nil
}

func (kpr *keypairReloader) maybeReload() error {
	newCert, err := tls.LoadX509KeyPair(kpr.certPath, kpr.keyPath)
	if err != nil {
		return err
	}
	kpr.certMu.Lock()
	defer kpr.certMu.Unlock()
	kpr.cert = &newCert
	return nil
}

func (kpr *keypairReloader) clientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	kpr.certMu.RLock()
	defer kpr.certMu.RUnlock()
	return kpr.cert, nil
}

// GetTLSConfig builds a client tls.Config, or returns nil if c is nil or
// empty.
func GetTLSConfig(c *TLSConfig, log mdk.Logger) (*tls.Config, error) {
	if c == nil || !c.Enabled() {
		return nil, nil
	}
	if log == nil {
		log = mdk.NopLogger{}
	}
	conf := &tls.Config{
		InsecureSkipVerify: c.SkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	if c.CertificatePath != "" {
		if c.CertificateKeyPath == "" {
			return nil, errors.New("tls certificate needs a key")
		}
		kpr, err := newKeypairReloader(c.CertificatePath, c.CertificateKeyPath, log)
		if err != nil {
			return nil, errors.Wrap(err, "loading keypair")
		}
		conf.GetClientCertificate = kpr.clientCertificate
	}
	if c.CACertPath != "" {
		b, err := ioutil.ReadFile(c.CACertPath)
		if err != nil {
			return nil, errors.Wrap(err, "loading tls ca certificate")
		}
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM(b); !ok {
			return nil, errors.New("error parsing CA certificate")
		}
		conf.RootCAs = certPool
	}
	return conf, nil
}
