// Package manifest описывает сервисы и операции коннектора для дизайнера хоста.
// Манифесты строятся один раз при старте и дальше только читаются.
package manifest

import (
	"files_connector/internal/azurefiles"
	"files_connector/internal/dispatch"
	"files_connector/internal/ftpclient"
	"files_connector/internal/sftpclient"
)

// Schema - упрощённая JSON схема входов и выходов операции
type Schema struct {
	Type        string             `json:"type"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Format      string             `json:"format,omitempty"`
	Default     any                `json:"default,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// ConnectionParameter - параметр подключения сервиса
type ConnectionParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Secure      bool   `json:"secure"`
	Source      string `json:"parameterSource,omitempty"`
}

// Service - описание сервиса
type Service struct {
	ID                   string                `json:"id"`
	Name                 string                `json:"name"`
	DisplayName          string                `json:"displayName"`
	Description          string                `json:"description"`
	BrandColor           string                `json:"brandColor"`
	IconURI              string                `json:"iconUri"`
	Capabilities         []string              `json:"capabilities"`
	ConnectionParameters []ConnectionParameter `json:"connectionParameters"`
}

// Operation - описание операции. Inputs и Outputs заполняются только в расширенном виде.
type Operation struct {
	ID          string  `json:"id"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	Visibility  string  `json:"visibility"`
	Trigger     string  `json:"trigger,omitempty"`
	Inputs      *Schema `json:"inputs,omitempty"`
	Outputs     *Schema `json:"outputs,omitempty"`
}

// Manifest - сервис и его операции
type Manifest struct {
	service    Service
	operations []Operation
}

// Service возвращает копию описания сервиса
func (m *Manifest) Service() Service {
	s := m.service
	s.Capabilities = append([]string(nil), m.service.Capabilities...)
	s.ConnectionParameters = append([]ConnectionParameter(nil), m.service.ConnectionParameters...)
	return s
}

// Operations возвращает копии операций; expand=false - без схем
func (m *Manifest) Operations(expand bool) []Operation {
	ops := make([]Operation, len(m.operations))
	for i, op := range m.operations {
		if expand {
			op.Inputs = op.Inputs.clone()
			op.Outputs = op.Outputs.clone()
		} else {
			op.Inputs = nil
			op.Outputs = nil
		}
		ops[i] = op
	}
	return ops
}

// Operation ищет операцию по идентификатору и возвращает её копию со схемами
func (m *Manifest) Operation(id string) (Operation, bool) {
	for _, op := range m.operations {
		if op.ID == id {
			op.Inputs = op.Inputs.clone()
			op.Outputs = op.Outputs.clone()
			return op, true
		}
	}
	return Operation{}, false
}

// clone - глубокая копия схемы
func (s *Schema) clone() *Schema {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = s.Items.clone()
	c.Required = append([]string(nil), s.Required...)
	if s.Properties != nil {
		c.Properties = make(map[string]*Schema, len(s.Properties))
		for name, p := range s.Properties {
			c.Properties[name] = p.clone()
		}
	}
	return &c
}

const iconBase = "https://iconsdp.blob.core.windows.net/icons/"

// AzureFiles - манифест сервиса Azure Files
func AzureFiles() *Manifest {
	return &Manifest{
		service: Service{
			ID:           "azurefiles",
			Name:         "AzureFilesbuiltin",
			DisplayName:  "AzureFiles",
			Description:  "Connect to AzureFiles.",
			BrandColor:   "#C4D5FF",
			IconURI:      iconBase + "AzureFiles.png",
			Capabilities: []string{"actions", "triggers"},
			ConnectionParameters: []ConnectionParameter{
				{
					Name:        azurefiles.ConnectionParameter,
					Type:        "string",
					DisplayName: "Files Connection String",
					Description: "Files Connection String",
					Required:    true,
					Secure:      true,
					Source:      "AppConfiguration",
				},
				binaryModeParameter(),
			},
		},
		operations: append(fileOperations("Azure Files share name", "Folder in the share"), Operation{
			ID:          dispatch.OperationTrigger,
			Summary:     "Azure Files Receive Files",
			Description: "Azure Files Receive Files",
			Visibility:  "important",
			Trigger:     "batch",
			Inputs: object([]string{dispatch.ParamFileShare},
				prop(dispatch.ParamFileShare, "File Share", "Azure Files share name"),
				prop(dispatch.ParamFolder, "Folder", "Folder in the share"),
				prop(dispatch.ParamPrefixFilter, "Prefix Filter", "Only files starting with this prefix"),
			),
			Outputs: listOutput(),
		}),
	}
}

// FTP - манифест сервиса FTP/FTPS
func FTP() *Manifest {
	return &Manifest{
		service: Service{
			ID:           "ftp",
			Name:         "FTPbuiltin",
			DisplayName:  "FTP",
			Description:  "Connect to FTP and FTPS servers.",
			BrandColor:   "#C4D5FF",
			IconURI:      iconBase + "FTP.png",
			Capabilities: []string{"actions"},
			ConnectionParameters: []ConnectionParameter{
				{Name: ftpclient.ParamHost, Type: "string", DisplayName: "Host", Description: "Server host, optionally host:port", Required: true},
				{Name: ftpclient.ParamUsername, Type: "string", DisplayName: "User Name"},
				{Name: ftpclient.ParamPassword, Type: "securestring", DisplayName: "Password", Secure: true},
				boolParameter(ftpclient.ParamUseSSL, "Use SSL", "Connect with FTPS"),
				boolParameter(ftpclient.ParamImplicitMode, "Implicit Mode", "Use implicit FTPS instead of AUTH TLS"),
				boolParameter(ftpclient.ParamUseSelfSignedCert, "Accept Self-Signed Certificate", "Skip server certificate verification"),
				boolParameter(ftpclient.ParamActiveMode, "Active Mode", "Request active data connections"),
				binaryModeParameter(),
			},
		},
		operations: fileOperations("Root directory on the server", "Folder under the root directory"),
	}
}

// SFTP - манифест сервиса SFTP
func SFTP() *Manifest {
	return &Manifest{
		service: Service{
			ID:           "sftp",
			Name:         "SFTPbuiltin",
			DisplayName:  "SFTP",
			Description:  "Connect to SFTP servers.",
			BrandColor:   "#C4D5FF",
			IconURI:      iconBase + "SFTP.png",
			Capabilities: []string{"actions"},
			ConnectionParameters: []ConnectionParameter{
				{Name: sftpclient.ParamHost, Type: "string", DisplayName: "Host", Required: true},
				{Name: sftpclient.ParamPort, Type: "int", DisplayName: "Port", Description: "Defaults to 22"},
				{Name: sftpclient.ParamUsername, Type: "string", DisplayName: "User Name", Required: true},
				{Name: sftpclient.ParamPassword, Type: "securestring", DisplayName: "Password", Secure: true},
				{Name: sftpclient.ParamHostKey, Type: "string", DisplayName: "Host Key", Description: "Server public key in authorized_keys format"},
				binaryModeParameter(),
			},
		},
		operations: fileOperations("Root directory on the server", "Folder under the root directory"),
	}
}

func boolParameter(name, display, description string) ConnectionParameter {
	return ConnectionParameter{Name: name, Type: "bool", DisplayName: display, Description: description}
}

func binaryModeParameter() ConnectionParameter {
	return boolParameter(dispatch.ParamUseBinaryMode, "Binary Mode", "File content is base64 encoded")
}

type property struct {
	name   string
	schema *Schema
}

func prop(name, title, description string) property {
	return property{name: name, schema: &Schema{Type: "string", Title: title, Description: description}}
}

func boolProp(name, title, description string, def bool) property {
	return property{name: name, schema: &Schema{Type: "boolean", Title: title, Description: description, Default: def}}
}

func object(required []string, props ...property) *Schema {
	s := &Schema{Type: "object", Properties: make(map[string]*Schema, len(props)), Required: required}
	for _, p := range props {
		s.Properties[p.name] = p.schema
	}
	return s
}

func listOutput() *Schema {
	entry := object(nil,
		property{name: "Name", schema: &Schema{Type: "string", Title: "Name"}},
		property{name: "IsDirectory", schema: &Schema{Type: "boolean", Title: "Is Directory"}},
	)
	body := object(nil,
		property{name: "ShareName", schema: &Schema{Type: "string", Title: "Share Name"}},
		property{name: "DirectoryName", schema: &Schema{Type: "string", Title: "Directory Name"}},
		property{name: "FileList", schema: &Schema{Type: "array", Title: "File List", Items: entry}},
	)
	return object(nil, property{name: "body", schema: body})
}

func boolOutput(title string) *Schema {
	return object(nil, property{name: "body", schema: &Schema{Type: "boolean", Title: title}})
}

// fileOperations - общие для всех сервисов действия
func fileOperations(shareDescription, folderDescription string) []Operation {
	share := prop(dispatch.ParamFileShare, "File Share", shareDescription)
	folder := prop(dispatch.ParamFolder, "Folder", folderDescription)
	source := prop(dispatch.ParamSourceFile, "Source File Name", "Source File Name")

	return []Operation{
		{
			ID:          dispatch.OperationList,
			Summary:     "List Files",
			Description: "List Files",
			Visibility:  "important",
			Inputs: object([]string{dispatch.ParamFileShare},
				share, folder,
				prop(dispatch.ParamPrefixFilter, "Prefix Filter", "Only entries starting with this prefix"),
			),
			Outputs: listOutput(),
		},
		{
			ID:          dispatch.OperationGetFile,
			Summary:     "Get File",
			Description: "Get File",
			Visibility:  "important",
			Inputs: object([]string{dispatch.ParamSourceFile, dispatch.ParamFileShare},
				share, folder, source,
			),
			Outputs: object(nil, property{name: "body", schema: &Schema{Type: "string", Title: "File Content"}}),
		},
		{
			ID:          dispatch.OperationUploadFile,
			Summary:     "Upload File",
			Description: "Upload File",
			Visibility:  "important",
			Inputs: object([]string{dispatch.ParamInputParam, dispatch.ParamContent, dispatch.ParamFileShare},
				share,
				prop(dispatch.ParamInputParam, "File Path", "Target file path relative to the share"),
				prop(dispatch.ParamContent, "Content", "File content, base64 in binary mode"),
				boolProp(dispatch.ParamOverwrite, "Overwrite", "Replace an existing file", true),
			),
			Outputs: boolOutput("Uploaded"),
		},
		{
			ID:          dispatch.OperationDeleteFile,
			Summary:     "Delete File",
			Description: "Delete File",
			Visibility:  "important",
			Inputs: object([]string{dispatch.ParamInputParam, dispatch.ParamFileShare},
				share,
				prop(dispatch.ParamInputParam, "File Path", "File to delete, relative to the share"),
			),
			Outputs: boolOutput("Deleted"),
		},
		{
			ID:          dispatch.OperationCopyFileToBlob,
			Summary:     "Copy File to Blob",
			Description: "Copy File to Blob",
			Visibility:  "important",
			Inputs: object([]string{dispatch.ParamSourceFile, dispatch.ParamFolder, dispatch.ParamBlobConnection, dispatch.ParamBlobFolder, dispatch.ParamFileShare},
				share, folder, source,
				prop(dispatch.ParamBlobConnection, "Blob Connection", "Storage connection string or @appsetting reference"),
				prop(dispatch.ParamBlobFolder, "Blob Folder", "Container, optionally followed by a path prefix"),
				boolProp(dispatch.ParamOverwrite, "Overwrite", "Replace an existing blob", true),
			),
			Outputs: boolOutput("Copied"),
		},
	}
}
