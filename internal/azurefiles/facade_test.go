package azurefiles

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"files_connector/internal/transfer"
	"files_connector/internal/transfer/transfertest"
)

var errNotFound = &azcore.ResponseError{ErrorCode: "ResourceNotFound", StatusCode: http.StatusNotFound}

// fakeShare хранит файлы по ключу "dir/name"
type fakeShare struct {
	files   map[string][]byte
	listing []transfer.FileEntry
	listErr error
	events  []string
}

type fakeFile struct {
	share *fakeShare
	key   string
	size  int64
}

func newFakeShare() *fakeShare {
	return &fakeShare{files: make(map[string][]byte)}
}

func (s *fakeShare) File(dir, name string) fileAPI {
	return &fakeFile{share: s, key: joinPath(dir, name)}
}

func (s *fakeShare) List(ctx context.Context, dir, prefix string) ([]transfer.FileEntry, error) {
	return s.listing, s.listErr
}

func (f *fakeFile) GetProperties(ctx context.Context, o *file.GetPropertiesOptions) (file.GetPropertiesResponse, error) {
	f.share.events = append(f.share.events, "exists:"+f.key)
	if _, ok := f.share.files[f.key]; !ok {
		return file.GetPropertiesResponse{}, errNotFound
	}
	return file.GetPropertiesResponse{}, nil
}

func (f *fakeFile) DownloadStream(ctx context.Context, o *file.DownloadStreamOptions) (file.DownloadStreamResponse, error) {
	f.share.events = append(f.share.events, "read:"+f.key)
	data, ok := f.share.files[f.key]
	if !ok {
		return file.DownloadStreamResponse{}, errNotFound
	}
	resp := file.DownloadStreamResponse{}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}

func (f *fakeFile) Create(ctx context.Context, size int64, o *file.CreateOptions) (file.CreateResponse, error) {
	f.share.files[f.key] = make([]byte, 0, size)
	f.size = size
	return file.CreateResponse{}, nil
}

func (f *fakeFile) UploadBuffer(ctx context.Context, buffer []byte, o *file.UploadBufferOptions) error {
	f.share.files[f.key] = append([]byte(nil), buffer...)
	return nil
}

func (f *fakeFile) Delete(ctx context.Context, o *file.DeleteOptions) (file.DeleteResponse, error) {
	delete(f.share.files, f.key)
	return file.DeleteResponse{}, nil
}

type recordingWriter struct {
	*transfertest.Memory
	share *fakeShare
}

func (w *recordingWriter) Write(ctx context.Context, target transfer.BlobTarget, name string, body io.Reader, overwrite bool) error {
	w.share.events = append(w.share.events, "write:"+target.Container+"/"+name)
	return w.Memory.Write(ctx, target, name, body, overwrite)
}

func newTestFacade(s *fakeShare, blobs transfer.BlobWriter) *Facade {
	return &Facade{
		cfg:       Config{ConnectionString: "UseDevelopmentStorage=true"},
		openShare: func(cfg Config, shareName string) (shareAPI, error) { return s, nil },
		blobs:     blobs,
	}
}

func TestDownload(t *testing.T) {
	s := newFakeShare()
	s.files["reports/a.txt"] = []byte("hello")
	f := newTestFacade(s, nil)

	data, err := f.Download(context.Background(), "docs", "/reports", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, []string{"exists:reports/a.txt", "read:reports/a.txt"}, s.events)
}

func TestDownloadNotFound(t *testing.T) {
	f := newTestFacade(newFakeShare(), nil)

	_, err := f.Download(context.Background(), "docs", "/", "missing.txt")
	require.Error(t, err)
	assert.Equal(t, transfer.KindNotFound, transfer.KindOf(err))
	assert.Contains(t, err.Error(), "docs/missing.txt")
}

func TestUploadOverwrite(t *testing.T) {
	s := newFakeShare()
	s.files["a.txt"] = []byte("old")
	f := newTestFacade(s, nil)

	err := f.Upload(context.Background(), "docs", "/a.txt", []byte("new"), false)
	assert.Equal(t, transfer.KindAlreadyExists, transfer.KindOf(err))
	assert.Equal(t, "old", string(s.files["a.txt"]))

	require.NoError(t, f.Upload(context.Background(), "docs", "/a.txt", []byte("new"), true))
	assert.Equal(t, "new", string(s.files["a.txt"]))
}

func TestUploadEmptyContent(t *testing.T) {
	s := newFakeShare()
	f := newTestFacade(s, nil)

	require.NoError(t, f.Upload(context.Background(), "docs", "dir/empty.txt", nil, false))
	data, ok := s.files["dir/empty.txt"]
	assert.True(t, ok)
	assert.Empty(t, data)
}

func TestDelete(t *testing.T) {
	s := newFakeShare()
	s.files["a.txt"] = []byte("x")
	f := newTestFacade(s, nil)

	require.NoError(t, f.Delete(context.Background(), "docs", "a.txt"))
	_, ok := s.files["a.txt"]
	assert.False(t, ok)

	err := f.Delete(context.Background(), "docs", "a.txt")
	assert.Equal(t, transfer.KindNotFound, transfer.KindOf(err))
}

func TestListFiltersAndSorts(t *testing.T) {
	s := newFakeShare()
	s.listing = []transfer.FileEntry{
		{Name: "notes.txt"},
		{Name: "2024-q1.csv"},
		{Name: "2024", IsDirectory: true},
		{Name: "2023-q4.csv"},
	}
	f := newTestFacade(s, nil)

	entries, err := f.List(context.Background(), "docs", "/reports", "2024")
	require.NoError(t, err)
	assert.Equal(t, []transfer.FileEntry{
		{Name: "2024", IsDirectory: true},
		{Name: "2024-q1.csv"},
	}, entries)

	entries, err = f.List(context.Background(), "docs", "/reports", "zzz")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestListFailure(t *testing.T) {
	s := newFakeShare()
	s.listErr = &azcore.ResponseError{ErrorCode: "AuthenticationFailed", StatusCode: http.StatusForbidden}
	f := newTestFacade(s, nil)

	_, err := f.List(context.Background(), "docs", "/", "")
	assert.Equal(t, transfer.KindTransfer, transfer.KindOf(err))
}

func TestCopyToBlobReadsSourceBeforeWrite(t *testing.T) {
	s := newFakeShare()
	s.files["a.txt"] = []byte("payload")
	mem := transfertest.NewMemory()
	f := newTestFacade(s, &recordingWriter{Memory: mem, share: s})

	err := f.CopyToBlob(context.Background(), "docs", "/", "a.txt", transfer.ParseBlobTarget("conn", "archive"), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"exists:a.txt", "read:a.txt", "write:archive/a.txt"}, s.events)
	data, ok := mem.Blob("archive", "a.txt")
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))
}

func TestCopyToBlobExistingBlob(t *testing.T) {
	s := newFakeShare()
	s.files["a.txt"] = []byte("new")
	mem := transfertest.NewMemory()
	mem.PutBlob("archive", "a.txt", []byte("old"))
	f := newTestFacade(s, mem)

	err := f.CopyToBlob(context.Background(), "docs", "/", "a.txt", transfer.ParseBlobTarget("conn", "archive"), false)
	assert.Equal(t, transfer.KindAlreadyExists, transfer.KindOf(err))
	data, _ := mem.Blob("archive", "a.txt")
	assert.Equal(t, "old", string(data))

	require.NoError(t, f.CopyToBlob(context.Background(), "docs", "/", "a.txt", transfer.ParseBlobTarget("conn", "archive"), true))
	data, _ = mem.Blob("archive", "a.txt")
	assert.Equal(t, "new", string(data))
}

func TestCopyToBlobMissingSource(t *testing.T) {
	s := newFakeShare()
	f := newTestFacade(s, transfertest.NewMemory())

	err := f.CopyToBlob(context.Background(), "docs", "/", "a.txt", transfer.ParseBlobTarget("conn", "archive"), true)
	assert.Equal(t, transfer.KindNotFound, transfer.KindOf(err))
	assert.Equal(t, []string{"exists:a.txt"}, s.events)
}

func TestOpenShareErrorHidesConnectionString(t *testing.T) {
	f := &Facade{
		cfg: Config{ConnectionString: "AccountKey=secret"},
		openShare: func(cfg Config, shareName string) (shareAPI, error) {
			return nil, errors.New("bad connection string AccountKey=secret")
		},
	}

	_, err := f.Download(context.Background(), "docs", "/", "a.txt")
	require.Error(t, err)
	assert.Equal(t, transfer.KindBadRequest, transfer.KindOf(err))
	assert.NotContains(t, err.Error(), "secret")
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		code string
		kind transfer.Kind
	}{
		{"ResourceNotFound", transfer.KindNotFound},
		{"ParentNotFound", transfer.KindNotFound},
		{"ShareNotFound", transfer.KindNotFound},
		{"ResourceAlreadyExists", transfer.KindAlreadyExists},
		{"ServerBusy", transfer.KindTransfer},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			err := translate("op", "docs/a", &azcore.ResponseError{ErrorCode: tc.code})
			assert.Equal(t, tc.kind, transfer.KindOf(err))
		})
	}

	assert.Equal(t, transfer.KindTransfer, transfer.KindOf(translate("op", "docs/a", context.DeadlineExceeded)))
}

func TestSplitPath(t *testing.T) {
	dir, name := splitPath("/reports/2024/a.txt")
	assert.Equal(t, "reports/2024", dir)
	assert.Equal(t, "a.txt", name)

	dir, name = splitPath("a.txt")
	assert.Equal(t, "", dir)
	assert.Equal(t, "a.txt", name)
}
