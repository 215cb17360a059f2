// Package ftpclient - фасад над FTP и FTPS серверами.
// Каждый вызов открывает отдельное управляющее соединение и закрывает его по завершении.
package ftpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"

	"files_connector/internal/ftps"
	"files_connector/internal/transfer"
)

// serverConn - операции FTP соединения, которыми пользуется фасад
type serverConn interface {
	Login(user, password string) error
	Type(t ftp.TransferType) error
	Retr(path string) (io.ReadCloser, error)
	Stor(path string, r io.Reader) error
	Delete(path string) error
	List(path string) ([]*ftp.Entry, error)
	Quit() error
}

type dialFunc func(ctx context.Context, cfg Config) (serverConn, error)

// Facade реализует transfer.Facade для FTP/FTPS
type Facade struct {
	cfg   Config
	dial  dialFunc
	blobs transfer.BlobWriter
	log   zerolog.Logger
}

// New создаёт фасад для одного подключения
func New(cfg Config, blobs transfer.BlobWriter, logger zerolog.Logger) *Facade {
	return &Facade{cfg: cfg, dial: dialServer, blobs: blobs, log: logger}
}

// NewProvider возвращает провайдер, который собирает Config из привязки.
// clientCert - необязательный клиентский сертификат процесса для FTPS.
func NewProvider(blobs transfer.BlobWriter, clientCert *tls.Certificate, logger zerolog.Logger) transfer.Provider {
	return transfer.ProviderFunc(func(ctx context.Context, conn transfer.Connection) (transfer.Facade, error) {
		cfg, err := ConfigFromConnection(conn)
		if err != nil {
			return nil, err
		}
		cfg.ClientCertificate = clientCert
		return New(cfg, blobs, logger), nil
	})
}

// liveConn подменяет Retr, чтобы фасад работал с io.ReadCloser
type liveConn struct {
	*ftp.ServerConn
}

func (c *liveConn) Retr(p string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(p)
}

func dialServer(ctx context.Context, cfg Config) (serverConn, error) {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(cfg.Timeout),
	}
	if mode, ok := cfg.TLSMode(); ok {
		tlsConfig := ftps.NewTLSConfig(ftps.Options{
			Host:             cfg.Host,
			AcceptSelfSigned: cfg.AcceptSelfSigned,
			ClientCert:       cfg.ClientCertificate,
		})
		if mode == ftps.ModeImplicit {
			opts = append(opts, ftp.DialWithTLS(tlsConfig))
		} else {
			opts = append(opts, ftp.DialWithExplicitTLS(tlsConfig))
		}
	}

	c, err := ftp.Dial(cfg.Addr(), opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to FTP server %s: %w", cfg.Addr(), err)
	}
	return &liveConn{ServerConn: c}, nil
}

// session - залогиненное соединение, закрываемое при отмене контекста
type session struct {
	conn serverConn
	stop func() bool
	log  zerolog.Logger
}

func (s *session) close() {
	s.stop()
	if err := s.conn.Quit(); err != nil {
		s.log.Debug().Err(err).Msg("closing FTP connection")
	}
}

func (f *Facade) connect(ctx context.Context, op, location string) (*session, error) {
	if f.cfg.ActiveMode {
		f.log.Warn().Str("host", f.cfg.Host).Msg("active mode is not supported, using passive mode")
	}

	if err := ctx.Err(); err != nil {
		return nil, transfer.FromContext(op, location, err)
	}
	conn, err := f.dial(ctx, f.cfg)
	if err != nil {
		return nil, transfer.FromContextOrFailed(op, location, err)
	}
	s := &session{
		conn: conn,
		// прерываем блокирующие вызовы при отмене контекста
		stop: context.AfterFunc(ctx, func() { _ = conn.Quit() }),
		log:  f.log,
	}

	if err := conn.Login(f.cfg.Username, f.cfg.Password); err != nil {
		s.close()
		return nil, f.fail(ctx, op, location, fmt.Errorf("FTP authentication failed for user %s: %w", f.cfg.Username, err))
	}

	transferType := ftp.TransferTypeASCII
	if f.cfg.BinaryMode {
		transferType = ftp.TransferTypeBinary
	}
	if err := conn.Type(transferType); err != nil {
		f.log.Warn().Err(err).Str("type", string(transferType)).Msg("failed to set transfer type")
	}
	return s, nil
}

// fail переводит ошибку с учётом отмены контекста
func (f *Facade) fail(ctx context.Context, op, location string, err error) error {
	if ctx.Err() != nil {
		return transfer.FromContext(op, location, ctx.Err())
	}
	return translate(op, location, err)
}

// exists ищет файл в листинге родительского каталога
func exists(conn serverConn, full string) (bool, error) {
	entries, err := conn.List(path.Dir(full))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	name := path.Base(full)
	for _, e := range entries {
		if path.Base(e.Name) == name && e.Type != ftp.EntryTypeFolder {
			return true, nil
		}
	}
	return false, nil
}

func (f *Facade) mustExist(ctx context.Context, s *session, op, full string) error {
	ok, err := exists(s.conn, full)
	if err != nil {
		return f.fail(ctx, op, full, err)
	}
	if !ok {
		return transfer.NotFound(op, full, nil)
	}
	return nil
}

// Download читает файл share/dir/name целиком
func (f *Facade) Download(ctx context.Context, share, dir, name string) ([]byte, error) {
	full := transfer.RootedPath(share, dir, name)
	s, err := f.connect(ctx, "download", full)
	if err != nil {
		return nil, err
	}
	defer s.close()

	if err := f.mustExist(ctx, s, "download", full); err != nil {
		return nil, err
	}

	r, err := s.conn.Retr(full)
	if err != nil {
		return nil, f.fail(ctx, "download", full, err)
	}
	data, readErr := io.ReadAll(r)
	closeErr := r.Close()
	if readErr != nil {
		return nil, f.fail(ctx, "download", full, multierror.Append(readErr, closeErr).ErrorOrNil())
	}
	if err := f.checkDataClose(closeErr, len(data)); err != nil {
		return nil, f.fail(ctx, "download", full, err)
	}
	return data, nil
}

// checkDataClose допускает 425/426 при закрытии соединения данных,
// если данные уже получены. Так ведут себя серверы с TLS session resumption.
func (f *Facade) checkDataClose(err error, n int) error {
	if err == nil {
		return nil
	}
	if n > 0 && hasCode(err, ftp.StatusCanNotOpenDataConnection, ftp.StatusTransfertAborted) {
		f.log.Warn().Err(err).Int("bytes", n).Msg("data connection close returned an error but data was transferred")
		return nil
	}
	return err
}

// Upload записывает content в файл filePath
func (f *Facade) Upload(ctx context.Context, share, filePath string, content []byte, overwrite bool) error {
	full := transfer.RootedPath(share, filePath)
	s, err := f.connect(ctx, "upload", full)
	if err != nil {
		return err
	}
	defer s.close()

	ok, err := exists(s.conn, full)
	if err != nil {
		return f.fail(ctx, "upload", full, err)
	}
	if ok && !overwrite {
		return transfer.AlreadyExists("upload", full, nil)
	}

	if err := s.conn.Stor(full, bytes.NewReader(content)); err != nil {
		if ctx.Err() != nil {
			return transfer.FromContext("upload", full, ctx.Err())
		}
		// отсутствующий каталог получателя - это не NotFound источника
		return transfer.Failed("upload", full, err)
	}
	return nil
}

// Delete удаляет файл filePath
func (f *Facade) Delete(ctx context.Context, share, filePath string) error {
	full := transfer.RootedPath(share, filePath)
	s, err := f.connect(ctx, "delete", full)
	if err != nil {
		return err
	}
	defer s.close()

	if err := f.mustExist(ctx, s, "delete", full); err != nil {
		return err
	}
	if err := s.conn.Delete(full); err != nil {
		return f.fail(ctx, "delete", full, err)
	}
	return nil
}

// List возвращает файлы и каталоги dir с префиксом prefix, без "." и ".."
func (f *Facade) List(ctx context.Context, share, dir, prefix string) ([]transfer.FileEntry, error) {
	full := transfer.RootedPath(share, dir)
	s, err := f.connect(ctx, "list", full)
	if err != nil {
		return nil, err
	}
	defer s.close()

	raw, err := s.conn.List(full)
	if err != nil {
		if ctx.Err() != nil {
			return nil, transfer.FromContext("list", full, ctx.Err())
		}
		return nil, transfer.Failed("list", full, err)
	}

	entries := make([]transfer.FileEntry, 0, len(raw))
	for _, e := range raw {
		if e == nil {
			continue
		}
		entries = append(entries, transfer.FileEntry{
			Name:        path.Base(e.Name),
			IsDirectory: e.Type == ftp.EntryTypeFolder,
		})
	}
	entries = transfer.FilterPrefix(entries, prefix)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// CopyToBlob передаёт поток RETR напрямую в Blob
func (f *Facade) CopyToBlob(ctx context.Context, share, dir, name string, dest transfer.BlobTarget, overwrite bool) error {
	full := transfer.RootedPath(share, dir, name)
	s, err := f.connect(ctx, "copy", full)
	if err != nil {
		return err
	}
	defer s.close()

	if err := f.mustExist(ctx, s, "copy", full); err != nil {
		return err
	}

	r, err := s.conn.Retr(full)
	if err != nil {
		return f.fail(ctx, "copy", full, err)
	}
	counter := &countingReader{r: r}
	writeErr := f.blobs.Write(ctx, dest, name, counter, overwrite)
	closeErr := r.Close()
	if writeErr != nil {
		if closeErr != nil {
			f.log.Debug().Err(closeErr).Msg("closing FTP data connection")
		}
		return writeErr
	}
	if err := f.checkDataClose(closeErr, counter.n); err != nil {
		return f.fail(ctx, "copy", full, err)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func hasCode(err error, codes ...int) bool {
	var te *textproto.Error
	if !errors.As(err, &te) {
		return false
	}
	for _, c := range codes {
		if te.Code == c {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return hasCode(err, ftp.StatusFileUnavailable, ftp.StatusFileActionIgnored)
}

func translate(op, location string, err error) error {
	if isNotFound(err) {
		return transfer.NotFound(op, location, err)
	}
	return transfer.FromContextOrFailed(op, location, err)
}

var _ transfer.Facade = (*Facade)(nil)
