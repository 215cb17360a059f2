// Package ftps собирает TLS конфигурацию для FTPS подключений.
package ftps

import (
	"crypto/rsa"
	"crypto/tls"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// Mode - режим шифрования FTPS
type Mode int

const (
	// ModeExplicit - AUTH TLS поверх обычного управляющего соединения
	ModeExplicit Mode = iota
	// ModeImplicit - TLS с первого байта, обычно порт 990
	ModeImplicit
)

// Options - TLS настройки одного подключения
type Options struct {
	Host             string
	AcceptSelfSigned bool
	ClientCert       *tls.Certificate
}

// NewTLSConfig создаёт конфигурацию с собственным кэшем сессий.
// Многие FTPS серверы требуют, чтобы соединение данных переиспользовало
// TLS сессию управляющего соединения, поэтому session tickets включены.
// Кэш живёт столько же, сколько подключение, и между запросами не делится.
func NewTLSConfig(opts Options) *tls.Config {
	cfg := &tls.Config{
		ServerName:             opts.Host,
		InsecureSkipVerify:     opts.AcceptSelfSigned,
		MinVersion:             tls.VersionTLS12,
		MaxVersion:             tls.VersionTLS13,
		SessionTicketsDisabled: false,
		ClientSessionCache:     tls.NewLRUClientSessionCache(8),
		Renegotiation:          tls.RenegotiateOnceAsClient,
	}

	if opts.ClientCert != nil {
		cert := *opts.ClientCert
		cfg.Certificates = []tls.Certificate{cert}
		cfg.GetClientCertificate = func(cri *tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return &cert, nil
		}
	}
	return cfg
}

// LoadClientCertificate загружает и расшифровывает клиентский сертификат из PFX файла
func LoadClientCertificate(certPath, pfxPassword string) (tls.Certificate, error) {
	if pfxPassword == "" {
		return tls.Certificate{}, errors.New("PFX password is required")
	}

	pfxData, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("reading PFX file %s: %w", certPath, err)
	}

	privateKey, cert, err := pkcs12.Decode(pfxData, pfxPassword)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decoding PFX file %s: %w", certPath, err)
	}

	// поддерживаем только RSA ключи
	rsaKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return tls.Certificate{}, fmt.Errorf("PFX file %s: private key is %T, want RSA", certPath, privateKey)
	}

	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  rsaKey,
		Leaf:        cert,
	}, nil
}
