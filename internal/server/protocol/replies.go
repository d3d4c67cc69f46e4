package protocol

import "github.com/dmitrijs2005/vaultrelay/internal/server/models"

// Code is the machine-readable error code of an error frame.
type Code string

const (
	CodeInvalidActivationKey Code = "INVALID_ACTIVATION_KEY"
	CodeNotRegistered        Code = "NOT_REGISTERED"
	CodeAlreadyRegistered    Code = "ALREADY_REGISTERED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeParseError           Code = "PARSE_ERROR"
	CodeUnknownType          Code = "UNKNOWN_TYPE"
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeInternal             Code = "INTERNAL"
)

// Notification events pushed to peers.
const (
	EventFileChanged = "file-changed"
	EventFileDeleted = "file-deleted"
)

// Error is both a Go error and the payload of an error frame.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// Reply converts e to its wire form.
func (e *Error) Reply() ErrorReply { return NewError(e.Code, e.Message) }

type ErrorReply struct {
	Type    string `json:"type"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

type Registered struct {
	Type    string `json:"type"`
	VaultID string `json:"vaultId"`
}

type Manifest struct {
	Type  string            `json:"type"`
	Files []models.FileMeta `json:"files"`
}

type Ack struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type FileData struct {
	Type string `json:"type"`
	Path string `json:"path"`
	IV   []byte `json:"iv"`
	Tag  []byte `json:"tag"`
	Data []byte `json:"data"`
}

type DeletedFiles struct {
	Type  string            `json:"type"`
	Files []models.FileMeta `json:"files"`
}

type FileRestored struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type Notify struct {
	Type  string `json:"type"`
	Event string `json:"event"`
	Path  string `json:"path"`
}

func NewError(code Code, msg string) ErrorReply {
	return ErrorReply{Type: "error", Code: code, Message: msg}
}

func NewRegistered(vaultID string) Registered {
	return Registered{Type: "registered", VaultID: vaultID}
}

func NewManifest(files []models.FileMeta) Manifest {
	if files == nil {
		files = []models.FileMeta{}
	}
	return Manifest{Type: "manifest", Files: files}
}

func NewAck(path string) Ack { return Ack{Type: "ack", Path: path} }

func NewFileData(f *models.File) FileData {
	return FileData{Type: "file-data", Path: f.Path, IV: f.IV, Tag: f.Tag, Data: f.Data}
}

func NewDeletedFiles(files []models.FileMeta) DeletedFiles {
	if files == nil {
		files = []models.FileMeta{}
	}
	return DeletedFiles{Type: "deleted-files", Files: files}
}

func NewFileRestored(path string) FileRestored {
	return FileRestored{Type: "file-restored", Path: path}
}

func NewNotify(event, path string) Notify {
	return Notify{Type: "notify", Event: event, Path: path}
}
