// Package azurefiles - фасад над общими папками Azure Files.
package azurefiles

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/directory"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/file"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/fileerror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/share"

	"files_connector/internal/transfer"
)

// ConnectionParameter - имя секретного параметра подключения
const ConnectionParameter = "filesConnectionString"

// Config - дескриптор подключения к аккаунту Azure Files
type Config struct {
	ConnectionString string
}

// fileAPI - операции над одним файлом share
type fileAPI interface {
	GetProperties(ctx context.Context, o *file.GetPropertiesOptions) (file.GetPropertiesResponse, error)
	DownloadStream(ctx context.Context, o *file.DownloadStreamOptions) (file.DownloadStreamResponse, error)
	Create(ctx context.Context, size int64, o *file.CreateOptions) (file.CreateResponse, error)
	UploadBuffer(ctx context.Context, buffer []byte, o *file.UploadBufferOptions) error
	Delete(ctx context.Context, o *file.DeleteOptions) (file.DeleteResponse, error)
}

// shareAPI - доступ к файлам и каталогам одной share
type shareAPI interface {
	File(dir, name string) fileAPI
	List(ctx context.Context, dir, prefix string) ([]transfer.FileEntry, error)
}

type openShareFunc func(cfg Config, shareName string) (shareAPI, error)

// Facade реализует transfer.Facade для Azure Files
type Facade struct {
	cfg       Config
	openShare openShareFunc
	blobs     transfer.BlobWriter
}

// New создаёт фасад. Клиент share создаётся в каждом вызове.
func New(cfg Config, blobs transfer.BlobWriter) *Facade {
	return &Facade{cfg: cfg, openShare: openAzureShare, blobs: blobs}
}

// NewProvider возвращает провайдер, читающий строку подключения из привязки
func NewProvider(blobs transfer.BlobWriter) transfer.Provider {
	return transfer.ProviderFunc(func(ctx context.Context, conn transfer.Connection) (transfer.Facade, error) {
		cs, ok := conn.Secret(ConnectionParameter)
		if !ok || cs == "" {
			return nil, transfer.BadRequest("connection parameter %s is required", ConnectionParameter)
		}
		return New(Config{ConnectionString: cs}, blobs), nil
	})
}

func (f *Facade) share(name string) (shareAPI, error) {
	s, err := f.openShare(f.cfg, name)
	if err != nil {
		// ошибка разбора может содержать ключ аккаунта, поэтому не передаём её дальше
		return nil, transfer.BadRequest("invalid files connection string")
	}
	return s, nil
}

// exists - обязательная проверка существования перед операцией с данными
func exists(ctx context.Context, fc fileAPI) (bool, error) {
	_, err := fc.GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Download читает файл share/dir/name целиком
func (f *Facade) Download(ctx context.Context, shareName, dir, name string) ([]byte, error) {
	location := shareName + "/" + joinPath(dir, name)
	s, err := f.share(shareName)
	if err != nil {
		return nil, err
	}
	fc := s.File(dir, name)

	ok, err := exists(ctx, fc)
	if err != nil {
		return nil, transfer.FromContextOrFailed("download", location, err)
	}
	if !ok {
		return nil, transfer.NotFound("download", location, nil)
	}

	resp, err := fc.DownloadStream(ctx, nil)
	if err != nil {
		return nil, translate("download", location, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transfer.FromContextOrFailed("download", location, err)
	}
	return data, nil
}

// Upload создаёт файл filePath и записывает в него content
func (f *Facade) Upload(ctx context.Context, shareName, filePath string, content []byte, overwrite bool) error {
	dir, name := splitPath(filePath)
	location := shareName + "/" + joinPath(dir, name)
	s, err := f.share(shareName)
	if err != nil {
		return err
	}
	fc := s.File(dir, name)

	ok, err := exists(ctx, fc)
	if err != nil {
		return transfer.FromContextOrFailed("upload", location, err)
	}
	if ok && !overwrite {
		return transfer.AlreadyExists("upload", location, nil)
	}

	// Create пересоздаёт файл нужного размера, затем пишем содержимое
	if _, err := fc.Create(ctx, int64(len(content)), nil); err != nil {
		return translateWrite("upload", location, err)
	}
	if len(content) == 0 {
		return nil
	}
	if err := fc.UploadBuffer(ctx, content, nil); err != nil {
		return translateWrite("upload", location, err)
	}
	return nil
}

// Delete удаляет файл filePath
func (f *Facade) Delete(ctx context.Context, shareName, filePath string) error {
	dir, name := splitPath(filePath)
	location := shareName + "/" + joinPath(dir, name)
	s, err := f.share(shareName)
	if err != nil {
		return err
	}
	fc := s.File(dir, name)

	ok, err := exists(ctx, fc)
	if err != nil {
		return transfer.FromContextOrFailed("delete", location, err)
	}
	if !ok {
		return transfer.NotFound("delete", location, nil)
	}
	if _, err := fc.Delete(ctx, nil); err != nil {
		return translate("delete", location, err)
	}
	return nil
}

// List возвращает файлы и каталоги dir с префиксом prefix
func (f *Facade) List(ctx context.Context, shareName, dir, prefix string) ([]transfer.FileEntry, error) {
	s, err := f.share(shareName)
	if err != nil {
		return nil, err
	}
	entries, err := s.List(ctx, dir, prefix)
	if err != nil {
		return nil, transfer.FromContextOrFailed("list", shareName+"/"+cleanDir(dir), err)
	}
	entries = transfer.FilterPrefix(entries, prefix)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// CopyToBlob копирует файл в Blob. Поток источника открывается до начала записи.
func (f *Facade) CopyToBlob(ctx context.Context, shareName, dir, name string, dest transfer.BlobTarget, overwrite bool) error {
	location := shareName + "/" + joinPath(dir, name)
	s, err := f.share(shareName)
	if err != nil {
		return err
	}
	fc := s.File(dir, name)

	ok, err := exists(ctx, fc)
	if err != nil {
		return transfer.FromContextOrFailed("copy", location, err)
	}
	if !ok {
		return transfer.NotFound("copy", location, nil)
	}

	resp, err := fc.DownloadStream(ctx, nil)
	if err != nil {
		return translate("copy", location, err)
	}
	defer resp.Body.Close()

	return f.blobs.Write(ctx, dest, name, resp.Body, overwrite)
}

func isNotFound(err error) bool {
	return fileerror.HasCode(err, fileerror.ResourceNotFound, fileerror.ParentNotFound, fileerror.ShareNotFound)
}

func translate(op, location string, err error) error {
	if isNotFound(err) {
		return transfer.NotFound(op, location, err)
	}
	return translateWrite(op, location, err)
}

func translateWrite(op, location string, err error) error {
	if fileerror.HasCode(err, fileerror.ResourceAlreadyExists) {
		return transfer.AlreadyExists(op, location, err)
	}
	return transfer.FromContextOrFailed(op, location, err)
}

func cleanDir(dir string) string {
	return strings.Trim(dir, "/")
}

func joinPath(dir, name string) string {
	dir = cleanDir(dir)
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// splitPath делит "reports/2024/a.txt" на каталог и имя
func splitPath(p string) (string, string) {
	p = strings.Trim(p, "/")
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// azureShare - реализация shareAPI поверх azfile
type azureShare struct {
	client *share.Client
}

func openAzureShare(cfg Config, shareName string) (shareAPI, error) {
	client, err := share.NewClientFromConnectionString(cfg.ConnectionString, shareName, nil)
	if err != nil {
		return nil, err
	}
	return &azureShare{client: client}, nil
}

func (s *azureShare) dir(dir string) *directory.Client {
	dir = cleanDir(dir)
	if dir == "" {
		return s.client.NewRootDirectoryClient()
	}
	return s.client.NewDirectoryClient(dir)
}

func (s *azureShare) File(dir, name string) fileAPI {
	return s.dir(dir).NewFileClient(name)
}

func (s *azureShare) List(ctx context.Context, dir, prefix string) ([]transfer.FileEntry, error) {
	opts := &directory.ListFilesAndDirectoriesOptions{}
	if prefix != "" {
		opts.Prefix = &prefix
	}
	pager := s.dir(dir).NewListFilesAndDirectoriesPager(opts)

	entries := make([]transfer.FileEntry, 0)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		if resp.Segment == nil {
			continue
		}
		for _, d := range resp.Segment.Directories {
			if d != nil && d.Name != nil {
				entries = append(entries, transfer.FileEntry{Name: *d.Name, IsDirectory: true})
			}
		}
		for _, fi := range resp.Segment.Files {
			if fi != nil && fi.Name != nil {
				entries = append(entries, transfer.FileEntry{Name: *fi.Name})
			}
		}
	}
	return entries, nil
}

var _ transfer.Facade = (*Facade)(nil)
