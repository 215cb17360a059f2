package ftpclient

import (
	"crypto/tls"
	"net"
	"strconv"
	"strings"
	"time"

	"files_connector/internal/ftps"
	"files_connector/internal/transfer"
)

// Имена параметров подключения
const (
	ParamHost              = "host"
	ParamUsername          = "username"
	ParamPassword          = "password"
	ParamUseSSL            = "useSSL"
	ParamImplicitMode      = "implicitMode"
	ParamUseSelfSignedCert = "useSelfSignedCert"
	ParamActiveMode        = "activeMode"
	ParamUseBinaryMode     = "useBinaryMode"
)

const (
	defaultPort         = 21
	defaultImplicitPort = 990
	defaultTimeout      = 60 * time.Second
)

// Config - дескриптор подключения к FTP/FTPS серверу
type Config struct {
	Host              string
	Port              int
	Username          string
	Password          string
	UseSSL            bool
	ImplicitMode      bool
	AcceptSelfSigned  bool
	ActiveMode        bool
	BinaryMode        bool
	ClientCertificate *tls.Certificate
	Timeout           time.Duration
}

// ConfigFromConnection собирает Config из параметров подключения.
// host может содержать порт: "ftp.example.com:2121".
func ConfigFromConnection(conn transfer.Connection) (Config, error) {
	host, _ := conn.Secret(ParamHost)
	host = strings.TrimSpace(host)
	if host == "" {
		return Config{}, transfer.BadRequest("connection parameter %s is required", ParamHost)
	}

	cfg := Config{
		UseSSL:           conn.Bool(ParamUseSSL, false),
		ImplicitMode:     conn.Bool(ParamImplicitMode, false),
		AcceptSelfSigned: conn.Bool(ParamUseSelfSignedCert, false),
		ActiveMode:       conn.Bool(ParamActiveMode, false),
		BinaryMode:       conn.Bool(ParamUseBinaryMode, false),
		Timeout:          defaultTimeout,
	}
	cfg.Username, _ = conn.Secret(ParamUsername)
	cfg.Password, _ = conn.Secret(ParamPassword)
	if cfg.Username == "" {
		cfg.Username = "anonymous"
	}

	h, p, err := net.SplitHostPort(host)
	if err != nil {
		// порт не указан
		cfg.Host = host
		cfg.Port = cfg.defaultPort()
		return cfg, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, transfer.BadRequest("invalid port number %q", p)
	}
	cfg.Host = h
	cfg.Port = port
	return cfg, nil
}

func (c Config) defaultPort() int {
	if c.UseSSL && c.ImplicitMode {
		return defaultImplicitPort
	}
	return defaultPort
}

// Addr возвращает адрес сервера вида host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TLSMode возвращает режим FTPS, если шифрование включено
func (c Config) TLSMode() (ftps.Mode, bool) {
	if !c.UseSSL {
		return 0, false
	}
	if c.ImplicitMode {
		return ftps.ModeImplicit, true
	}
	return ftps.ModeExplicit, true
}
