// Package protocol defines the JSON frames exchanged over the relay's
// message channel. Inbound frames decode into one concrete Request type per
// message; outbound frames are plain structs carrying their own "type".
package protocol

// Inbound message types.
const (
	TypeRegister        = "register"
	TypeGetManifest     = "get-manifest"
	TypeUpload          = "upload"
	TypeDownload        = "download"
	TypeDelete          = "delete"
	TypeGetDeletedFiles = "get-deleted-files"
	TypeRestoreFile     = "restore-file"
)

// Request is implemented by every inbound message. The set is closed:
// only types in this package satisfy it.
type Request interface {
	// Vault returns the vault the message acts on.
	Vault() string
	request()
}

type Register struct {
	VaultID        string `json:"vaultId"`
	ActivationCode string `json:"activationCode,omitempty"`
}

type GetManifest struct {
	VaultID string `json:"vaultId"`
}

// Upload carries ciphertext as base64 in JSON. Size, ModifiedAt and
// OriginalPath are optional.
type Upload struct {
	VaultID      string `json:"vaultId"`
	Path         string `json:"path"`
	IV           []byte `json:"iv"`
	Tag          []byte `json:"tag"`
	Data         []byte `json:"data"`
	Hash         string `json:"hash,omitempty"`
	Size         *int64 `json:"size,omitempty"`
	ModifiedAt   *int64 `json:"modifiedAt,omitempty"`
	OriginalPath string `json:"originalPath,omitempty"`
}

type Download struct {
	VaultID string `json:"vaultId"`
	Path    string `json:"path"`
}

type Delete struct {
	VaultID string `json:"vaultId"`
	Path    string `json:"path"`
}

type GetDeletedFiles struct {
	VaultID string `json:"vaultId"`
}

type RestoreFile struct {
	VaultID string `json:"vaultId"`
	Path    string `json:"path"`
}

func (m *Register) Vault() string        { return m.VaultID }
func (m *GetManifest) Vault() string     { return m.VaultID }
func (m *Upload) Vault() string          { return m.VaultID }
func (m *Download) Vault() string        { return m.VaultID }
func (m *Delete) Vault() string          { return m.VaultID }
func (m *GetDeletedFiles) Vault() string { return m.VaultID }
func (m *RestoreFile) Vault() string     { return m.VaultID }

func (*Register) request()        {}
func (*GetManifest) request()     {}
func (*Upload) request()          {}
func (*Download) request()        {}
func (*Delete) request()          {}
func (*GetDeletedFiles) request() {}
func (*RestoreFile) request()     {}
