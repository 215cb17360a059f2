// Package blobstore пишет файлы в Azure Blob Storage для операции копирования.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"files_connector/internal/transfer"
)

// Uploader - часть azblob.Client, нужная для записи
type Uploader interface {
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

// ClientFactory создаёт клиента по строке подключения или URL аккаунта
type ClientFactory func(connection string) (Uploader, error)

// Writer реализует transfer.BlobWriter. Клиент создаётся на каждый вызов.
type Writer struct {
	newClient ClientFactory
}

// NewWriter создаёт Writer со стандартной фабрикой клиентов
func NewWriter() *Writer {
	return &Writer{newClient: NewClient}
}

// NewWriterWithFactory нужен для подмены клиента в тестах
func NewWriterWithFactory(f ClientFactory) *Writer {
	return &Writer{newClient: f}
}

// NewClient создаёт azblob клиента. Если connection - https URL аккаунта,
// используется DefaultAzureCredential (managed identity и т.п.), иначе
// connection считается строкой подключения.
func NewClient(connection string) (Uploader, error) {
	if strings.HasPrefix(strings.ToLower(connection), "https://") {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("creating Azure credential: %w", err)
		}
		client, err := azblob.NewClient(connection, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("creating blob client: %w", err)
		}
		return client, nil
	}
	client, err := azblob.NewClientFromConnectionString(connection, nil)
	if err != nil {
		// текст ошибки SDK может содержать фрагменты строки подключения
		return nil, transfer.BadRequest("invalid blob connection string")
	}
	return client, nil
}

// Write загружает body в блоб target/name. При overwrite=false запись идёт
// с условием If-None-Match: *, и существующий блоб не изменяется.
func (w *Writer) Write(ctx context.Context, target transfer.BlobTarget, name string, body io.Reader, overwrite bool) error {
	if target.Container == "" {
		return transfer.BadRequest("blob container is empty")
	}
	blobName := target.BlobName(name)
	location := target.Container + "/" + blobName

	client, err := w.newClient(target.Connection)
	if err != nil {
		if transfer.KindOf(err) == transfer.KindBadRequest {
			return err
		}
		return transfer.Failed("copy", location, err)
	}

	opts := &azblob.UploadStreamOptions{}
	if !overwrite {
		opts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{
				IfNoneMatch: to.Ptr(azcore.ETagAny),
			},
		}
	}

	if _, err := client.UploadStream(ctx, target.Container, blobName, body, opts); err != nil {
		return translate(location, err)
	}
	return nil
}

func translate(location string, err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet):
		return transfer.AlreadyExists("copy", location, err)
	default:
		return transfer.FromContextOrFailed("copy", location, err)
	}
}

var _ transfer.BlobWriter = (*Writer)(nil)
