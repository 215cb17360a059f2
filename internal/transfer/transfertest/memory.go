// Package transfertest содержит фасад в памяти для тестов диспетчера и HTTP слоя.
package transfertest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"sync"

	"files_connector/internal/transfer"
)

// Memory - фасад, хранящий файлы в памяти с той же семантикой ошибок,
// что и настоящие бэкенды
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	blobs map[string][]byte

	// Fail, если задан, возвращается любым методом фасада
	Fail error

	opens int
	calls int
	conns []transfer.Connection
}

// NewMemory создаёт пустое хранилище
func NewMemory() *Memory {
	return &Memory{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
		blobs: make(map[string][]byte),
	}
}

// Provider возвращает провайдер, открывающий этот же фасад
func (m *Memory) Provider() transfer.Provider {
	return transfer.ProviderFunc(func(ctx context.Context, conn transfer.Connection) (transfer.Facade, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.opens++
		m.conns = append(m.conns, conn)
		return m, nil
	})
}

// Opens - сколько раз открывался фасад
func (m *Memory) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Calls - сколько методов фасада было вызвано
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastConnection возвращает параметры подключения последнего Open
func (m *Memory) LastConnection() transfer.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.conns) == 0 {
		return nil
	}
	return m.conns[len(m.conns)-1]
}

// Put кладёт файл и создаёт родительские каталоги
func (m *Memory) Put(share, filePath string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := transfer.RootedPath(share, filePath)
	m.files[p] = append([]byte(nil), data...)
	for dir := path.Dir(p); dir != "/"; dir = path.Dir(dir) {
		m.dirs[dir] = true
	}
}

// Get возвращает содержимое файла
func (m *Memory) Get(share, filePath string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[transfer.RootedPath(share, filePath)]
	return data, ok
}

// PutBlob кладёт блоб в контейнер
func (m *Memory) PutBlob(container, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[container+"/"+name] = append([]byte(nil), data...)
}

// Blob возвращает содержимое блоба
func (m *Memory) Blob(container, name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[container+"/"+name]
	return data, ok
}

func (m *Memory) enter() error {
	m.calls++
	return m.Fail
}

func (m *Memory) Download(ctx context.Context, share, dir, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	p := transfer.RootedPath(share, dir, name)
	data, ok := m.files[p]
	if !ok {
		return nil, transfer.NotFound("download", p, nil)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Upload(ctx context.Context, share, filePath string, content []byte, overwrite bool) error {
	m.mu.Lock()
	if err := m.enter(); err != nil {
		m.mu.Unlock()
		return err
	}
	p := transfer.RootedPath(share, filePath)
	_, exists := m.files[p]
	m.mu.Unlock()
	if exists && !overwrite {
		return transfer.AlreadyExists("upload", p, nil)
	}
	m.Put(share, filePath, content)
	return nil
}

func (m *Memory) Delete(ctx context.Context, share, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	p := transfer.RootedPath(share, filePath)
	if _, ok := m.files[p]; !ok {
		return transfer.NotFound("delete", p, nil)
	}
	delete(m.files, p)
	return nil
}

func (m *Memory) List(ctx context.Context, share, dir, prefix string) ([]transfer.FileEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	root := transfer.RootedPath(share, dir)
	var entries []transfer.FileEntry
	for p := range m.files {
		if path.Dir(p) == root {
			entries = append(entries, transfer.FileEntry{Name: path.Base(p)})
		}
	}
	for p := range m.dirs {
		if path.Dir(p) == root {
			entries = append(entries, transfer.FileEntry{Name: path.Base(p), IsDirectory: true})
		}
	}
	entries = transfer.FilterPrefix(entries, prefix)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *Memory) CopyToBlob(ctx context.Context, share, dir, name string, dest transfer.BlobTarget, overwrite bool) error {
	m.mu.Lock()
	if err := m.enter(); err != nil {
		m.mu.Unlock()
		return err
	}
	p := transfer.RootedPath(share, dir, name)
	data, ok := m.files[p]
	m.mu.Unlock()
	if !ok {
		return transfer.NotFound("copy", p, nil)
	}
	return m.Write(ctx, dest, name, bytes.NewReader(data), overwrite)
}

// Write реализует transfer.BlobWriter
func (m *Memory) Write(ctx context.Context, target transfer.BlobTarget, name string, body io.Reader, overwrite bool) error {
	if target.Container == "" {
		return transfer.BadRequest("blob container is empty")
	}
	key := target.Container + "/" + target.BlobName(name)
	m.mu.Lock()
	_, exists := m.blobs[key]
	m.mu.Unlock()
	if exists && !overwrite {
		return transfer.AlreadyExists("copy", key, errors.New("BlobAlreadyExists"))
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return transfer.Failed("copy", key, err)
	}
	m.mu.Lock()
	m.blobs[key] = data
	m.mu.Unlock()
	return nil
}

var (
	_ transfer.Facade     = (*Memory)(nil)
	_ transfer.BlobWriter = (*Memory)(nil)
)
