package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"bookstore-payments/internal/config"
	"bookstore-payments/internal/domain/ports/adapter"
	"bookstore-payments/internal/infra/security"
)

var _ adapter.ReceiptStore = (*DiskReceiptStore)(nil)

// DiskReceiptStore keeps payment-proof blobs on local disk, sharded by
// year/month, and mints signed expiring URLs for admin review. Paths stored
// in the database are relative to the receipt dir, so the dir can move
// without a migration.
type DiskReceiptStore struct {
	dir     string
	baseURL string
	signer  *security.Signer
	log     *zerolog.Logger
}

func NewDiskReceiptStore(cfg config.StorageConfig, signer *security.Signer, logger *zerolog.Logger) (*DiskReceiptStore, error) {
	if cfg.ReceiptDir == "" {
		return nil, errors.New("receipt dir is required")
	}
	if err := os.MkdirAll(cfg.ReceiptDir, 0o750); err != nil {
		return nil, fmt.Errorf("create receipt dir: %w", err)
	}
	return &DiskReceiptStore{
		dir:     cfg.ReceiptDir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		signer:  signer,
		log:     logger,
	}, nil
}

func (s *DiskReceiptStore) Save(ctx context.Context, data []byte, contentType string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if len(data) == 0 {
		return "", errors.New("empty receipt payload")
	}

	now := time.Now().UTC()
	rel := path.Join(now.Format("2006/01"), ulid.Make().String()+extensionFor(contentType))
	abs := filepath.Join(s.dir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o640); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	s.log.Debug().Str("path", rel).Int("bytes", len(data)).Msg("receipt stored")
	return rel, nil
}

// SignedURL returns an expiring link an admin can open without a session.
func (s *DiskReceiptStore) SignedURL(relPath string, ttl time.Duration) (string, error) {
	rel, err := cleanRelPath(relPath)
	if err != nil {
		return "", err
	}
	exp, sig := s.signer.SignPath(rel, ttl)
	return fmt.Sprintf("%s/receipts/%s?exp=%d&sig=%s", s.baseURL, rel, exp, sig), nil
}

// Open validates the signature pair and returns the blob for serving.
func (s *DiskReceiptStore) Open(relPath string, exp int64, sig string) ([]byte, error) {
	rel, err := cleanRelPath(relPath)
	if err != nil {
		return nil, err
	}
	if !s.signer.VerifyPath(rel, exp, sig) {
		return nil, errors.New("signature invalid or expired")
	}
	return os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(rel)))
}

// cleanRelPath rejects traversal before the path touches the filesystem.
func cleanRelPath(rel string) (string, error) {
	cleaned := path.Clean("/" + rel)[1:]
	if cleaned == "" || cleaned != rel || strings.Contains(rel, "..") {
		return "", fmt.Errorf("invalid receipt path %q", rel)
	}
	return cleaned, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	default:
		return ".jpg"
	}
}
