package dispatch

import (
	"context"

	"files_connector/internal/transfer"
)

// Идентификаторы операций
const (
	OperationList           = "List"
	OperationGetFile        = "GetFile"
	OperationUploadFile     = "UploadFile"
	OperationDeleteFile     = "DeleteFile"
	OperationCopyFileToBlob = "CopyFileToBlob"
	// OperationTrigger объявлен в манифесте, но обработчика не имеет
	OperationTrigger = "Trigger"
)

// Имена параметров операций
const (
	ParamFileShare      = "fileShare"
	ParamFolder         = "folder"
	ParamPrefixFilter   = "prefixFilter"
	ParamSourceFile     = "sourcefile"
	ParamInputParam     = "inputParam"
	ParamContent        = "content"
	ParamOverwrite      = "overwrite"
	ParamBlobConnection = "blobconnection"
	ParamBlobFolder     = "blobfolder"

	// ParamUseBinaryMode - параметр подключения, включающий base64 для содержимого
	ParamUseBinaryMode = "useBinaryMode"
)

// Input - всё, что нужно обработчику для разбора параметров
type Input struct {
	Share          string
	Params         Params
	Encoding       transfer.Encoding
	StrictBooleans bool
}

// Args - разобранные аргументы операции
type Args struct {
	Share      string
	Folder     string
	Prefix     string
	SourceFile string
	Path       string
	Content    []byte
	Overwrite  bool
	Blob       transfer.BlobTarget
	Encoding   transfer.Encoding
}

// Inputs - параметры, которые читает обработчик. fileShare входит в Required всегда.
type Inputs struct {
	Required []string
	Optional []string
}

// Handler - обработчик одной операции
type Handler interface {
	Inputs() Inputs
	Validate(in Input) (Args, error)
	Execute(ctx context.Context, f transfer.Facade, args Args) (any, error)
}

// ListResult - тело ответа операции List
type ListResult struct {
	ShareName     string               `json:"ShareName"`
	DirectoryName string               `json:"DirectoryName"`
	FileList      []transfer.FileEntry `json:"FileList"`
}

type listHandler struct{}

func (listHandler) Inputs() Inputs {
	return Inputs{
		Required: []string{ParamFileShare},
		Optional: []string{ParamFolder, ParamPrefixFilter},
	}
}

func (listHandler) Validate(in Input) (Args, error) {
	return Args{
		Share:  in.Share,
		Folder: in.Params.Optional(ParamFolder, ""),
		Prefix: in.Params.Optional(ParamPrefixFilter, ""),
	}, nil
}

func (listHandler) Execute(ctx context.Context, f transfer.Facade, args Args) (any, error) {
	entries, err := f.List(ctx, args.Share, args.Folder, args.Prefix)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []transfer.FileEntry{}
	}
	return ListResult{ShareName: args.Share, DirectoryName: args.Folder, FileList: entries}, nil
}

type getFileHandler struct{}

func (getFileHandler) Inputs() Inputs {
	return Inputs{
		Required: []string{ParamFileShare, ParamSourceFile},
		Optional: []string{ParamFolder},
	}
}

func (getFileHandler) Validate(in Input) (Args, error) {
	source, err := in.Params.Required(ParamSourceFile)
	if err != nil {
		return Args{}, err
	}
	return Args{
		Share:      in.Share,
		Folder:     in.Params.Optional(ParamFolder, ""),
		SourceFile: source,
		Encoding:   in.Encoding,
	}, nil
}

func (getFileHandler) Execute(ctx context.Context, f transfer.Facade, args Args) (any, error) {
	data, err := f.Download(ctx, args.Share, args.Folder, args.SourceFile)
	if err != nil {
		return nil, err
	}
	return args.Encoding.Encode(data), nil
}

type uploadFileHandler struct{}

func (uploadFileHandler) Inputs() Inputs {
	return Inputs{
		Required: []string{ParamFileShare, ParamInputParam, ParamContent},
		Optional: []string{ParamOverwrite},
	}
}

func (uploadFileHandler) Validate(in Input) (Args, error) {
	p, err := in.Params.Required(ParamInputParam)
	if err != nil {
		return Args{}, err
	}
	raw, err := in.Params.Present(ParamContent)
	if err != nil {
		return Args{}, err
	}
	content, err := in.Encoding.Decode(raw)
	if err != nil {
		return Args{}, err
	}
	overwrite, err := in.Params.Bool(ParamOverwrite, true, in.StrictBooleans)
	if err != nil {
		return Args{}, err
	}
	return Args{Share: in.Share, Path: p, Content: content, Overwrite: overwrite}, nil
}

func (uploadFileHandler) Execute(ctx context.Context, f transfer.Facade, args Args) (any, error) {
	if err := f.Upload(ctx, args.Share, args.Path, args.Content, args.Overwrite); err != nil {
		return nil, err
	}
	return true, nil
}

type deleteFileHandler struct{}

func (deleteFileHandler) Inputs() Inputs {
	return Inputs{
		Required: []string{ParamFileShare, ParamInputParam},
	}
}

func (deleteFileHandler) Validate(in Input) (Args, error) {
	p, err := in.Params.Required(ParamInputParam)
	if err != nil {
		return Args{}, err
	}
	return Args{Share: in.Share, Path: p}, nil
}

func (deleteFileHandler) Execute(ctx context.Context, f transfer.Facade, args Args) (any, error) {
	if err := f.Delete(ctx, args.Share, args.Path); err != nil {
		return nil, err
	}
	return true, nil
}

type copyFileToBlobHandler struct{}

func (copyFileToBlobHandler) Inputs() Inputs {
	return Inputs{
		Required: []string{ParamFileShare, ParamFolder, ParamSourceFile, ParamBlobConnection, ParamBlobFolder},
		Optional: []string{ParamOverwrite},
	}
}

func (copyFileToBlobHandler) Validate(in Input) (Args, error) {
	folder, err := in.Params.Required(ParamFolder)
	if err != nil {
		return Args{}, err
	}
	source, err := in.Params.Required(ParamSourceFile)
	if err != nil {
		return Args{}, err
	}
	conn, err := in.Params.Required(ParamBlobConnection)
	if err != nil {
		return Args{}, err
	}
	conn, err = ResolveAppSetting(conn)
	if err != nil {
		return Args{}, err
	}
	blobFolder, err := in.Params.Required(ParamBlobFolder)
	if err != nil {
		return Args{}, err
	}
	overwrite, err := in.Params.Bool(ParamOverwrite, true, in.StrictBooleans)
	if err != nil {
		return Args{}, err
	}

	target := transfer.ParseBlobTarget(conn, blobFolder)
	if target.Container == "" {
		return Args{}, transfer.BadRequest("parameter %s must name a blob container", ParamBlobFolder)
	}
	return Args{
		Share:      in.Share,
		Folder:     folder,
		SourceFile: source,
		Blob:       target,
		Overwrite:  overwrite,
	}, nil
}

func (copyFileToBlobHandler) Execute(ctx context.Context, f transfer.Facade, args Args) (any, error) {
	if err := f.CopyToBlob(ctx, args.Share, args.Folder, args.SourceFile, args.Blob, args.Overwrite); err != nil {
		return nil, err
	}
	return true, nil
}

// OperationInputs возвращает параметры операции, у которой есть обработчик
func OperationInputs(id string) (Inputs, bool) {
	h, ok := defaultHandlers()[id]
	if !ok {
		return Inputs{}, false
	}
	return h.Inputs(), true
}

// defaultHandlers - реестр операций. Trigger намеренно отсутствует.
func defaultHandlers() map[string]Handler {
	return map[string]Handler{
		OperationList:           listHandler{},
		OperationGetFile:        getFileHandler{},
		OperationUploadFile:     uploadFileHandler{},
		OperationDeleteFile:     deleteFileHandler{},
		OperationCopyFileToBlob: copyFileToBlobHandler{},
	}
}
