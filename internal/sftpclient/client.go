// Package sftpclient - фасад над SFTP серверами (pkg/sftp поверх x/crypto/ssh).
package sftpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"files_connector/internal/transfer"
)

// Имена параметров подключения
const (
	ParamHost     = "host"
	ParamPort     = "port"
	ParamUsername = "username"
	ParamPassword = "password"
	ParamHostKey  = "hostKey"
)

const (
	defaultPort    = 22
	defaultTimeout = 30 * time.Second
)

// Config - дескриптор подключения к SFTP серверу
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// HostKey - открытый ключ сервера в формате authorized_keys.
	// Если пуст, ключ сервера не проверяется.
	HostKey string
	Timeout time.Duration
}

// ConfigFromConnection собирает Config из параметров подключения
func ConfigFromConnection(conn transfer.Connection) (Config, error) {
	host, _ := conn.Secret(ParamHost)
	host = strings.TrimSpace(host)
	if host == "" {
		return Config{}, transfer.BadRequest("connection parameter %s is required", ParamHost)
	}
	cfg := Config{Host: host, Port: defaultPort, Timeout: defaultTimeout}

	if h, p, err := net.SplitHostPort(host); err == nil {
		cfg.Host = h
		if cfg.Port, err = parsePort(p); err != nil {
			return Config{}, err
		}
	}
	if p, ok := conn.Secret(ParamPort); ok && strings.TrimSpace(p) != "" {
		port, err := parsePort(strings.TrimSpace(p))
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}

	cfg.Username, _ = conn.Secret(ParamUsername)
	if cfg.Username == "" {
		return Config{}, transfer.BadRequest("connection parameter %s is required", ParamUsername)
	}
	cfg.Password, _ = conn.Secret(ParamPassword)
	cfg.HostKey, _ = conn.Secret(ParamHostKey)
	return cfg, nil
}

func parsePort(p string) (int, error) {
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, transfer.BadRequest("invalid port number %q", p)
	}
	return port, nil
}

// Addr возвращает адрес сервера вида host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// hostKeyCallback закрепляет ключ сервера, если он задан
func (c Config) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if strings.TrimSpace(c.HostKey) == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(c.HostKey))
	if err != nil {
		return nil, transfer.BadRequest("connection parameter %s is not a valid public key", ParamHostKey)
	}
	return ssh.FixedHostKey(pub), nil
}

// client - операции SFTP, которыми пользуется фасад
type client interface {
	Stat(p string) (os.FileInfo, error)
	Open(p string) (io.ReadCloser, error)
	Create(p string, exclusive bool) (io.WriteCloser, error)
	Remove(p string) error
	ReadDir(p string) ([]os.FileInfo, error)
	Close() error
}

type dialFunc func(ctx context.Context, cfg Config) (client, error)

// liveClient держит SSH соединение и SFTP сессию поверх него
type liveClient struct {
	sftp *sftp.Client
	ssh  *ssh.Client
}

func dialServer(ctx context.Context, cfg Config) (client, error) {
	callback, err := cfg.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	sshConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: callback,
		Timeout:         cfg.Timeout,
	}

	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("ssh dial failed: %w", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, cfg.Addr(), sshConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake failed: %w", err)
	}
	sshClient := ssh.NewClient(c, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("sftp client failed: %w", err)
	}
	return &liveClient{sftp: sftpClient, ssh: sshClient}, nil
}

func (c *liveClient) Stat(p string) (os.FileInfo, error) {
	return c.sftp.Stat(p)
}

func (c *liveClient) Open(p string) (io.ReadCloser, error) {
	return c.sftp.Open(p)
}

func (c *liveClient) Create(p string, exclusive bool) (io.WriteCloser, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if exclusive {
		flags |= os.O_EXCL
	}
	return c.sftp.OpenFile(p, flags)
}

func (c *liveClient) Remove(p string) error {
	return c.sftp.Remove(p)
}

func (c *liveClient) ReadDir(p string) ([]os.FileInfo, error) {
	return c.sftp.ReadDir(p)
}

// Close закрывает SFTP сессию и SSH соединение
func (c *liveClient) Close() error {
	var result *multierror.Error
	if err := c.sftp.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.ssh.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
