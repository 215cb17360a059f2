// Package transfer описывает общий контракт фасадов удалённых хранилищ
// (Azure Files, FTP/FTPS, SFTP) и таксономию их ошибок.
package transfer

import (
	"context"
	"encoding/base64"
	"io"
	"path"
	"strings"
)

// FileEntry - элемент листинга
type FileEntry struct {
	Name        string `json:"Name"`
	IsDirectory bool   `json:"IsDirectory"`
}

// BlobTarget - получатель операции копирования в Blob.
// Connection - строка подключения или URL аккаунта, это секрет.
type BlobTarget struct {
	Connection string
	Container  string
	Prefix     string
}

// ParseBlobTarget разбирает blobfolder вида "container/virtual/dir"
func ParseBlobTarget(connection, folder string) BlobTarget {
	folder = strings.Trim(folder, "/")
	container, prefix, _ := strings.Cut(folder, "/")
	return BlobTarget{Connection: connection, Container: container, Prefix: prefix}
}

// BlobName возвращает имя блоба для файла name с учётом префикса
func (t BlobTarget) BlobName(name string) string {
	if t.Prefix == "" {
		return name
	}
	return path.Join(t.Prefix, name)
}

// BlobWriter записывает поток в Blob. Реализация - blobstore.Writer.
type BlobWriter interface {
	Write(ctx context.Context, target BlobTarget, name string, body io.Reader, overwrite bool) error
}

// Facade - единый контракт фасада одного бэкенда.
// Каждый метод сначала проверяет существование объекта.
type Facade interface {
	Download(ctx context.Context, share, dir, name string) ([]byte, error)
	Upload(ctx context.Context, share, filePath string, content []byte, overwrite bool) error
	Delete(ctx context.Context, share, filePath string) error
	List(ctx context.Context, share, dir, prefix string) ([]FileEntry, error)
	CopyToBlob(ctx context.Context, share, dir, name string, dest BlobTarget, overwrite bool) error
}

// Connection - доступ к секретным параметрам подключения
type Connection interface {
	Secret(name string) (string, bool)
	Bool(name string, def bool) bool
}

// Provider создаёт фасад на каждый запрос. Пул соединений, если понадобится,
// добавляется реализацией Provider без изменения диспетчера.
type Provider interface {
	Open(ctx context.Context, conn Connection) (Facade, error)
}

// ProviderFunc адаптирует функцию к Provider
type ProviderFunc func(ctx context.Context, conn Connection) (Facade, error)

func (f ProviderFunc) Open(ctx context.Context, conn Connection) (Facade, error) {
	return f(ctx, conn)
}

// Encoding - представление содержимого файла в JSON
type Encoding int

const (
	EncodingText Encoding = iota
	EncodingBase64
)

// Encode кодирует содержимое для ответа
func (e Encoding) Encode(data []byte) string {
	if e == EncodingBase64 {
		return base64.StdEncoding.EncodeToString(data)
	}
	return string(data)
}

// Decode декодирует содержимое из запроса
func (e Encoding) Decode(s string) ([]byte, error) {
	if e == EncodingBase64 {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, BadRequest("content is not valid base64: %v", err)
		}
		return data, nil
	}
	return []byte(s), nil
}

// FilterPrefix оставляет записи с префиксом prefix. Пустой префикс - все записи.
func FilterPrefix(entries []FileEntry, prefix string) []FileEntry {
	out := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if strings.HasPrefix(e.Name, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// RootedPath строит абсолютный путь внутри корня share
func RootedPath(share string, elem ...string) string {
	parts := append([]string{"/", share}, elem...)
	return path.Join(parts...)
}
