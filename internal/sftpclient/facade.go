package sftpclient

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"

	"files_connector/internal/transfer"
)

// Facade реализует transfer.Facade для SFTP
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

// NewProvider возвращает провайдер, который собирает Config из привязки
func NewProvider(blobs transfer.BlobWriter, logger zerolog.Logger) transfer.Provider {
	return transfer.ProviderFunc(func(ctx context.Context, conn transfer.Connection) (transfer.Facade, error) {
		cfg, err := ConfigFromConnection(conn)
		if err != nil {
			return nil, err
		}
		return New(cfg, blobs, logger), nil
	})
}

func (f *Facade) connect(ctx context.Context, op, location string) (client, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, transfer.FromContext(op, location, err)
	}
	c, err := f.dial(ctx, f.cfg)
	if err != nil {
		if transfer.KindOf(err) == transfer.KindBadRequest {
			return nil, nil, err
		}
		return nil, nil, transfer.FromContextOrFailed(op, location, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	release := func() {
		stop()
		if err := c.Close(); err != nil {
			f.log.Debug().Err(err).Msg("closing SFTP connection")
		}
	}
	return c, release, nil
}

func (f *Facade) fail(ctx context.Context, op, location string, err error) error {
	if ctx.Err() != nil {
		return transfer.FromContext(op, location, ctx.Err())
	}
	return translate(op, location, err)
}

// exists проверяет, что по пути лежит обычный файл
func exists(c client, full string) (bool, error) {
	fi, err := c.Stat(full)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return !fi.IsDir(), nil
}

func (f *Facade) mustExist(ctx context.Context, c client, op, full string) error {
	ok, err := exists(c, full)
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
	c, release, err := f.connect(ctx, "download", full)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := f.mustExist(ctx, c, "download", full); err != nil {
		return nil, err
	}
	r, err := c.Open(full)
	if err != nil {
		return nil, f.fail(ctx, "download", full, err)
	}
	data, readErr := io.ReadAll(r)
	closeErr := r.Close()
	if err := multierror.Append(readErr, closeErr).ErrorOrNil(); err != nil {
		return nil, f.fail(ctx, "download", full, err)
	}
	return data, nil
}

// Upload записывает content в файл filePath. При overwrite=false файл
// создаётся с O_EXCL, и гонка с другим писателем даёт AlreadyExists.
func (f *Facade) Upload(ctx context.Context, share, filePath string, content []byte, overwrite bool) error {
	full := transfer.RootedPath(share, filePath)
	c, release, err := f.connect(ctx, "upload", full)
	if err != nil {
		return err
	}
	defer release()

	ok, err := exists(c, full)
	if err != nil {
		return f.fail(ctx, "upload", full, err)
	}
	if ok && !overwrite {
		return transfer.AlreadyExists("upload", full, nil)
	}

	w, err := c.Create(full, !overwrite)
	if err != nil {
		if !overwrite && isExclusiveConflict(err) {
			return transfer.AlreadyExists("upload", full, err)
		}
		return f.failWrite(ctx, "upload", full, err)
	}
	_, writeErr := w.Write(content)
	closeErr := w.Close()
	if err := multierror.Append(writeErr, closeErr).ErrorOrNil(); err != nil {
		return f.failWrite(ctx, "upload", full, err)
	}
	return nil
}

// sshFxFileAlreadyExists - код SFTPv5+, в pkg/sftp не экспортирован
const sshFxFileAlreadyExists = 11

// isExclusiveConflict - файл уже существует при создании с O_EXCL.
// OpenSSH отвечает на это общим SSH_FX_FAILURE, pkg/sftp отдаёт его как *sftp.StatusError.
func isExclusiveConflict(err error) bool {
	if errors.Is(err, fs.ErrExist) {
		return true
	}
	var se *sftp.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.FxCode() == sftp.ErrSSHFxFailure || se.Code == sshFxFileAlreadyExists
}

// failWrite - ошибки записи: отсутствующий каталог получателя не считается NotFound
func (f *Facade) failWrite(ctx context.Context, op, location string, err error) error {
	if ctx.Err() != nil {
		return transfer.FromContext(op, location, ctx.Err())
	}
	if errors.Is(err, fs.ErrExist) {
		return transfer.AlreadyExists(op, location, err)
	}
	return transfer.Failed(op, location, err)
}

// Delete удаляет файл filePath
func (f *Facade) Delete(ctx context.Context, share, filePath string) error {
	full := transfer.RootedPath(share, filePath)
	c, release, err := f.connect(ctx, "delete", full)
	if err != nil {
		return err
	}
	defer release()

	if err := f.mustExist(ctx, c, "delete", full); err != nil {
		return err
	}
	if err := c.Remove(full); err != nil {
		return f.fail(ctx, "delete", full, err)
	}
	return nil
}

// List возвращает файлы и каталоги dir с префиксом prefix
func (f *Facade) List(ctx context.Context, share, dir, prefix string) ([]transfer.FileEntry, error) {
	full := transfer.RootedPath(share, dir)
	c, release, err := f.connect(ctx, "list", full)
	if err != nil {
		return nil, err
	}
	defer release()

	infos, err := c.ReadDir(full)
	if err != nil {
		if ctx.Err() != nil {
			return nil, transfer.FromContext("list", full, ctx.Err())
		}
		return nil, transfer.Failed("list", full, err)
	}

	entries := make([]transfer.FileEntry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, transfer.FileEntry{Name: fi.Name(), IsDirectory: fi.IsDir()})
	}
	entries = transfer.FilterPrefix(entries, prefix)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// CopyToBlob передаёт содержимое файла в Blob потоком
func (f *Facade) CopyToBlob(ctx context.Context, share, dir, name string, dest transfer.BlobTarget, overwrite bool) error {
	full := transfer.RootedPath(share, dir, name)
	c, release, err := f.connect(ctx, "copy", full)
	if err != nil {
		return err
	}
	defer release()

	if err := f.mustExist(ctx, c, "copy", full); err != nil {
		return err
	}
	r, err := c.Open(full)
	if err != nil {
		return f.fail(ctx, "copy", full, err)
	}
	defer r.Close()

	return f.blobs.Write(ctx, dest, name, r, overwrite)
}

// pkg/sftp приводит SSH_FX_NO_SUCH_FILE к os.ErrNotExist
func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func translate(op, location string, err error) error {
	if isNotFound(err) {
		return transfer.NotFound(op, location, err)
	}
	return transfer.FromContextOrFailed(op, location, err)
}

var _ transfer.Facade = (*Facade)(nil)
