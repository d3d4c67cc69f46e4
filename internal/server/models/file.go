// Package models defines server-side data models persisted in the database.
package models

import "time"

// File is one encrypted blob stored for a vault, keyed by (VaultID, Path).
// The relay never looks inside IV, Tag or Data.
type File struct {
	VaultID string
	Path    string

	IV   []byte
	Tag  []byte
	Data []byte

	// Hash is supplied by the client and stored verbatim.
	Hash string
	Size int64
	// ModifiedAt is the client's logical modification time in unix milliseconds.
	ModifiedAt   int64
	OriginalPath string

	Deleted   bool
	DeletedAt *time.Time

	// StorageKey is the object-storage key of the ciphertext when it is
	// offloaded; empty when Data is stored inline.
	StorageKey string
	UpdatedAt  time.Time
}

// FileMeta is the ciphertext-free view of a File returned in manifests and
// deleted-file listings.
type FileMeta struct {
	Path         string     `json:"path"`
	Hash         string     `json:"hash"`
	Size         int64      `json:"size"`
	ModifiedAt   int64      `json:"modifiedAt"`
	OriginalPath string     `json:"originalPath,omitempty"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// Meta strips the ciphertext from f.
func (f *File) Meta() FileMeta {
	return FileMeta{
		Path:         f.Path,
		Hash:         f.Hash,
		Size:         f.Size,
		ModifiedAt:   f.ModifiedAt,
		OriginalPath: f.OriginalPath,
		DeletedAt:    f.DeletedAt,
	}
}
