package sftpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"files_connector/internal/transfer"
	"files_connector/internal/transfer/transfertest"
)

type fakeInfo struct {
	name string
	dir  bool
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return 0 }
func (i fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Sys() any           { return nil }

// fakeClient - SFTP сервер в памяти
type fakeClient struct {
	files  map[string][]byte
	dirs   map[string]bool
	closed int
	opened []string

	// createErr, если задан, возвращается из Create
	createErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{files: make(map[string][]byte), dirs: map[string]bool{"/": true}}
}

func (c *fakeClient) put(p string, data []byte) {
	c.files[p] = data
	for d := path.Dir(p); d != "/"; d = path.Dir(d) {
		c.dirs[d] = true
	}
}

func (c *fakeClient) Stat(p string) (os.FileInfo, error) {
	if _, ok := c.files[p]; ok {
		return fakeInfo{name: path.Base(p)}, nil
	}
	if c.dirs[p] {
		return fakeInfo{name: path.Base(p), dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (c *fakeClient) Open(p string) (io.ReadCloser, error) {
	data, ok := c.files[p]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	c.opened = append(c.opened, p)
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeWriter struct {
	c   *fakeClient
	p   string
	buf bytes.Buffer
}

func (w *fakeWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *fakeWriter) Close() error {
	w.c.files[w.p] = w.buf.Bytes()
	return nil
}

func (c *fakeClient) Create(p string, exclusive bool) (io.WriteCloser, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	if !c.dirs[path.Dir(p)] {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	if _, ok := c.files[p]; ok && exclusive {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrExist}
	}
	return &fakeWriter{c: c, p: p}, nil
}

func (c *fakeClient) Remove(p string) error {
	if _, ok := c.files[p]; !ok {
		return &fs.PathError{Op: "remove", Path: p, Err: fs.ErrNotExist}
	}
	delete(c.files, p)
	return nil
}

func (c *fakeClient) ReadDir(dir string) ([]os.FileInfo, error) {
	if !c.dirs[dir] {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}
	var out []os.FileInfo
	for p := range c.files {
		if path.Dir(p) == dir {
			out = append(out, fakeInfo{name: path.Base(p)})
		}
	}
	for d := range c.dirs {
		if d != "/" && path.Dir(d) == dir {
			out = append(out, fakeInfo{name: path.Base(d), dir: true})
		}
	}
	return out, nil
}

func (c *fakeClient) Close() error {
	c.closed++
	return nil
}

func newTestFacade(c *fakeClient, blobs transfer.BlobWriter) *Facade {
	return &Facade{
		cfg:   Config{Host: "sftp.example.com", Port: 22, Username: "user"},
		dial:  func(ctx context.Context, cfg Config) (client, error) { return c, nil },
		blobs: blobs,
		log:   zerolog.Nop(),
	}
}

func TestDownload(t *testing.T) {
	c := newFakeClient()
	c.put("/home/reports/a.txt", []byte("hello"))
	f := newTestFacade(c, nil)

	data, err := f.Download(context.Background(), "home", "reports", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 1, c.closed)
}

func TestDownloadNotFound(t *testing.T) {
	c := newFakeClient()
	c.put("/home/reports/a.txt", []byte("hello"))
	f := newTestFacade(c, nil)

	_, err := f.Download(context.Background(), "home", "reports", "b.txt")
	assert.Equal(t, transfer.KindNotFound, transfer.KindOf(err))

	_, err = f.Download(context.Background(), "home", "", "reports")
	assert.Equal(t, transfer.KindNotFound, transfer.KindOf(err))
	assert.Empty(t, c.opened)
}

func TestUpload(t *testing.T) {
	c := newFakeClient()
	c.put("/home/a.txt", []byte("old"))
	f := newTestFacade(c, nil)

	err := f.Upload(context.Background(), "home", "a.txt", []byte("new"), false)
	assert.Equal(t, transfer.KindAlreadyExists, transfer.KindOf(err))
	assert.Equal(t, "old", string(c.files["/home/a.txt"]))

	require.NoError(t, f.Upload(context.Background(), "home", "a.txt", []byte("new"), true))
	assert.Equal(t, "new", string(c.files["/home/a.txt"]))
}

func TestUploadMissingDirectory(t *testing.T) {
	f := newTestFacade(newFakeClient(), nil)

	err := f.Upload(context.Background(), "home", "nowhere/a.txt", []byte("x"), true)
	assert.Equal(t, transfer.KindTransfer, transfer.KindOf(err))
}

func TestFailWriteExclusive(t *testing.T) {
	f := newTestFacade(newFakeClient(), nil)

	err := f.failWrite(context.Background(), "upload", "/home/a.txt", &fs.PathError{Op: "open", Err: fs.ErrExist})
	assert.Equal(t, transfer.KindAlreadyExists, transfer.KindOf(err))
}

// файл появился между проверкой существования и созданием с O_EXCL
func TestUploadExclusiveRace(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		overwrite bool
		want      transfer.Kind
	}{
		{"openssh failure", &sftp.StatusError{Code: 4}, false, transfer.KindAlreadyExists},
		{"file already exists", &sftp.StatusError{Code: sshFxFileAlreadyExists}, false, transfer.KindAlreadyExists},
		{"failure without exclusive", &sftp.StatusError{Code: 4}, true, transfer.KindTransfer},
		{"permission denied", os.ErrPermission, false, transfer.KindTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeClient()
			c.dirs["/home"] = true
			c.createErr = tt.err
			f := newTestFacade(c, nil)

			err := f.Upload(context.Background(), "home", "a.txt", []byte("x"), tt.overwrite)
			assert.Equal(t, tt.want, transfer.KindOf(err))
		})
	}
}

func TestDelete(t *testing.T) {
	c := newFakeClient()
	c.put("/home/a.txt", []byte("x"))
	f := newTestFacade(c, nil)

	require.NoError(t, f.Delete(context.Background(), "home", "/a.txt"))
	err := f.Delete(context.Background(), "home", "/a.txt")
	assert.Equal(t, transfer.KindNotFound, transfer.KindOf(err))
}

func TestList(t *testing.T) {
	c := newFakeClient()
	c.put("/home/reports/2024-q1.csv", []byte("a"))
	c.put("/home/reports/2023-q4.csv", []byte("b"))
	c.put("/home/reports/notes.txt", []byte("c"))
	c.put("/home/reports/archive/old.csv", []byte("d"))
	f := newTestFacade(c, nil)

	entries, err := f.List(context.Background(), "home", "/reports", "")
	require.NoError(t, err)
	assert.Equal(t, []transfer.FileEntry{
		{Name: "2023-q4.csv"},
		{Name: "2024-q1.csv"},
		{Name: "archive", IsDirectory: true},
		{Name: "notes.txt"},
	}, entries)

	entries, err = f.List(context.Background(), "home", "/reports", "2024")
	require.NoError(t, err)
	assert.Equal(t, []transfer.FileEntry{{Name: "2024-q1.csv"}}, entries)

	_, err = f.List(context.Background(), "home", "/missing", "")
	assert.Equal(t, transfer.KindTransfer, transfer.KindOf(err))
}

func TestCopyToBlob(t *testing.T) {
	c := newFakeClient()
	c.put("/home/in/a.txt", []byte("payload"))
	mem := transfertest.NewMemory()
	f := newTestFacade(c, mem)

	target := transfer.ParseBlobTarget("conn", "archive")
	require.NoError(t, f.CopyToBlob(context.Background(), "home", "in", "a.txt", target, false))
	data, ok := mem.Blob("archive", "a.txt")
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))

	err := f.CopyToBlob(context.Background(), "home", "in", "a.txt", target, false)
	assert.Equal(t, transfer.KindAlreadyExists, transfer.KindOf(err))

	err = f.CopyToBlob(context.Background(), "home", "in", "missing.txt", target, true)
	assert.Equal(t, transfer.KindNotFound, transfer.KindOf(err))
}

func TestDialError(t *testing.T) {
	f := newTestFacade(nil, nil)
	f.dial = func(ctx context.Context, cfg Config) (client, error) {
		return nil, errors.New("ssh handshake failed")
	}
	_, err := f.List(context.Background(), "home", "/", "")
	assert.Equal(t, transfer.KindTransfer, transfer.KindOf(err))

	f.dial = func(ctx context.Context, cfg Config) (client, error) {
		return nil, transfer.BadRequest("connection parameter hostKey is not a valid public key")
	}
	_, err = f.List(context.Background(), "home", "/", "")
	assert.Equal(t, transfer.KindBadRequest, transfer.KindOf(err))
}

type mapConnection map[string]string

func (m mapConnection) Secret(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m mapConnection) Bool(name string, def bool) bool {
	if b, err := strconv.ParseBool(m[name]); err == nil {
		return b
	}
	return def
}

func TestConfigFromConnection(t *testing.T) {
	cfg, err := ConfigFromConnection(mapConnection{"host": "sftp.example.com", "username": "u", "password": "p"})
	require.NoError(t, err)
	assert.Equal(t, "sftp.example.com:22", cfg.Addr())

	cfg, err = ConfigFromConnection(mapConnection{"host": "sftp.example.com:2222", "username": "u"})
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.Port)

	cfg, err = ConfigFromConnection(mapConnection{"host": "sftp.example.com", "port": "2022", "username": "u"})
	require.NoError(t, err)
	assert.Equal(t, 2022, cfg.Port)
}

func TestConfigFromConnectionErrors(t *testing.T) {
	tests := []struct {
		name string
		conn mapConnection
	}{
		{"missing host", mapConnection{"username": "u"}},
		{"missing username", mapConnection{"host": "h"}},
		{"bad port", mapConnection{"host": "h", "port": "x", "username": "u"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ConfigFromConnection(tc.conn)
			assert.Equal(t, transfer.KindBadRequest, transfer.KindOf(err))
		})
	}
}

func TestHostKeyCallback(t *testing.T) {
	cb, err := Config{}.hostKeyCallback()
	require.NoError(t, err)
	assert.NotNil(t, cb)

	_, err = Config{HostKey: "not a key"}.hostKeyCallback()
	assert.Equal(t, transfer.KindBadRequest, transfer.KindOf(err))

	const key = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIOMqqnkVzrm0SdG6UOoqKLsabgH5C9okWi0dh2l9GKJl test@example"
	cb, err = Config{HostKey: key}.hostKeyCallback()
	require.NoError(t, err)
	assert.NotNil(t, cb)
}
