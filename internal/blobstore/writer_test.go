package blobstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"files_connector/internal/transfer"
)

type fakeUploader struct {
	container string
	blob      string
	body      string
	opts      *azblob.UploadStreamOptions
	err       error
}

func (f *fakeUploader) UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error) {
	f.container = containerName
	f.blob = blobName
	f.opts = o
	data, _ := io.ReadAll(body)
	f.body = string(data)
	return azblob.UploadStreamResponse{}, f.err
}

func writerWith(u *fakeUploader) *Writer {
	return NewWriterWithFactory(func(connection string) (Uploader, error) {
		return u, nil
	})
}

func TestWriteOverwrite(t *testing.T) {
	u := &fakeUploader{}
	w := writerWith(u)

	target := transfer.ParseBlobTarget("conn", "archive/2024")
	err := w.Write(context.Background(), target, "a.txt", strings.NewReader("hello"), true)
	require.NoError(t, err)

	assert.Equal(t, "archive", u.container)
	assert.Equal(t, "2024/a.txt", u.blob)
	assert.Equal(t, "hello", u.body)
	require.NotNil(t, u.opts)
	assert.Nil(t, u.opts.AccessConditions)
}

func TestWriteWithoutOverwriteSetsIfNoneMatch(t *testing.T) {
	u := &fakeUploader{}
	w := writerWith(u)

	err := w.Write(context.Background(), transfer.ParseBlobTarget("conn", "archive"), "a.txt", strings.NewReader("x"), false)
	require.NoError(t, err)

	require.NotNil(t, u.opts.AccessConditions)
	require.NotNil(t, u.opts.AccessConditions.ModifiedAccessConditions)
	assert.Equal(t, azcore.ETagAny, *u.opts.AccessConditions.ModifiedAccessConditions.IfNoneMatch)
}

func TestWriteAlreadyExists(t *testing.T) {
	u := &fakeUploader{err: &azcore.ResponseError{ErrorCode: "BlobAlreadyExists", StatusCode: http.StatusConflict}}
	w := writerWith(u)

	err := w.Write(context.Background(), transfer.ParseBlobTarget("conn", "archive"), "a.txt", strings.NewReader("x"), false)
	require.Error(t, err)
	assert.Equal(t, transfer.KindAlreadyExists, transfer.KindOf(err))
	assert.Contains(t, err.Error(), "archive/a.txt")
}

func TestWriteOtherFailure(t *testing.T) {
	u := &fakeUploader{err: &azcore.ResponseError{ErrorCode: "AuthenticationFailed", StatusCode: http.StatusForbidden}}
	w := writerWith(u)

	err := w.Write(context.Background(), transfer.ParseBlobTarget("conn", "archive"), "a.txt", strings.NewReader("x"), true)
	require.Error(t, err)
	assert.Equal(t, transfer.KindTransfer, transfer.KindOf(err))
}

func TestWriteEmptyContainer(t *testing.T) {
	w := writerWith(&fakeUploader{})

	err := w.Write(context.Background(), transfer.ParseBlobTarget("conn", ""), "a.txt", strings.NewReader("x"), true)
	assert.Equal(t, transfer.KindBadRequest, transfer.KindOf(err))
}

func TestWriteClientFactoryError(t *testing.T) {
	w := NewWriterWithFactory(func(connection string) (Uploader, error) {
		return nil, errors.New("dns failure")
	})

	err := w.Write(context.Background(), transfer.ParseBlobTarget("conn", "archive"), "a.txt", strings.NewReader("x"), true)
	assert.Equal(t, transfer.KindTransfer, transfer.KindOf(err))
}

func TestNewClientRejectsMalformedConnectionString(t *testing.T) {
	const secret = "not-a-connection-string-secret"
	_, err := NewClient(secret)
	require.Error(t, err)
	assert.Equal(t, transfer.KindBadRequest, transfer.KindOf(err))
	assert.NotContains(t, err.Error(), secret)
}
