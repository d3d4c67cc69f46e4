package protocol

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Type    string `json:"type"`
	VaultID string `json:"vaultId"`
}

// Decode parses one inbound frame. Any failure is returned as *Error with
// the code the client should see.
func Decode(frame []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, &Error{Code: CodeParseError, Message: "invalid JSON"}
	}
	if env.Type == "" {
		return nil, &Error{Code: CodeParseError, Message: "missing message type"}
	}

	var req Request
	switch env.Type {
	case TypeRegister:
		req = &Register{}
	case TypeGetManifest:
		req = &GetManifest{}
	case TypeUpload:
		req = &Upload{}
	case TypeDownload:
		req = &Download{}
	case TypeDelete:
		req = &Delete{}
	case TypeGetDeletedFiles:
		req = &GetDeletedFiles{}
	case TypeRestoreFile:
		req = &RestoreFile{}
	default:
		return nil, &Error{Code: CodeUnknownType, Message: fmt.Sprintf("unknown message type: %s", env.Type)}
	}

	if err := json.Unmarshal(frame, req); err != nil {
		return nil, &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf("invalid %s message: %v", env.Type, err)}
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

// PeekVaultID returns the vaultId of a frame without decoding its body, or
// "" if there is none.
func PeekVaultID(frame []byte) string {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return ""
	}
	return env.VaultID
}

func validate(req Request) error {
	if req.Vault() == "" {
		return invalid("vaultId is required")
	}

	var path string
	switch m := req.(type) {
	case *Upload:
		path = m.Path
		if len(m.IV) == 0 || len(m.Tag) == 0 || m.Data == nil {
			return invalid("iv, tag and data are required")
		}
	case *Download:
		path = m.Path
	case *Delete:
		path = m.Path
	case *RestoreFile:
		path = m.Path
	default:
		return nil
	}

	if path == "" {
		return invalid("path is required")
	}
	return nil
}

func invalid(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}
