// Package docstore is the file-storage boundary for KYC uploads. Storage is
// an upstream collaborator; this package only needs a stable path per saved
// document.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"keohams/internal/kyc/models"
)

// Store saves an uploaded document and returns its stored metadata.
type Store interface {
	Save(ctx context.Context, userID uuid.UUID, name, contentType string, r io.Reader) (*models.Document, error)
}

// DiskStore writes documents under root/<userID>/<uuid>-<name>.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Save(_ context.Context, userID uuid.UUID, name, contentType string, r io.Reader) (*models.Document, error) {
	dir := filepath.Join(s.root, userID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create user upload dir: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+"-"+filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	return &models.Document{
		Path:        path,
		ContentType: contentType,
		SizeBytes:   size,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}
