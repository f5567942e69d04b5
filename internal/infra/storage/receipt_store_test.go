//go:build !integration

package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bookstore-payments/internal/config"
	"bookstore-payments/internal/infra/security"
)

func newTestStore(t *testing.T) *DiskReceiptStore {
	t.Helper()
	signer, err := security.NewSigner("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	logger := zerolog.New(io.Discard)
	store, err := NewDiskReceiptStore(config.StorageConfig{
		ReceiptDir: t.TempDir(),
		BaseURL:    "https://shop.example.com",
		SigningKey: "unused-here",
	}, signer, &logger)
	if err != nil {
		t.Fatalf("NewDiskReceiptStore: %v", err)
	}
	return store
}

func TestDiskReceiptStore_SaveAndOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rel, err := store.Save(ctx, []byte("receipt-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(rel, ".png") {
		t.Errorf("expected .png suffix, got %q", rel)
	}
	if filepath.IsAbs(rel) {
		t.Errorf("stored path must be relative, got %q", rel)
	}

	signed, err := store.SignedURL(rel, time.Minute)
	if err != nil {
		t.Fatalf("SignedURL: %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	exp, err := strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	if err != nil {
		t.Fatalf("exp param: %v", err)
	}
	sig := u.Query().Get("sig")

	got, err := store.Open(rel, exp, sig)
	if err != nil {
		t.Fatalf("Open with valid signature: %v", err)
	}
	if string(got) != "receipt-bytes" {
		t.Errorf("payload mismatch: %q", got)
	}

	t.Run("tampered signature refused", func(t *testing.T) {
		if _, err := store.Open(rel, exp, sig+"x"); err == nil {
			t.Fatal("expected error for bad signature")
		}
	})

	t.Run("expired link refused", func(t *testing.T) {
		pastExp, pastSig := exp-3600, sig
		if _, err := store.Open(rel, pastExp, pastSig); err == nil {
			t.Fatal("expected error for expired link")
		}
	})
}

func TestDiskReceiptStore_RejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	for _, rel := range []string{"../etc/passwd", "2026/01/../../secret", "/abs/path"} {
		if _, err := store.SignedURL(rel, time.Minute); err == nil {
			t.Errorf("SignedURL(%q): expected rejection", rel)
		}
		if _, err := store.Open(rel, time.Now().Add(time.Minute).Unix(), "sig"); err == nil {
			t.Errorf("Open(%q): expected rejection", rel)
		}
	}
}

func TestDiskReceiptStore_EmptyPayload(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Save(context.Background(), nil, "image/jpeg"); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestSigner_PathBinding(t *testing.T) {
	signer, err := security.NewSigner("0123456789abcdef")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	exp, sig := signer.SignPath("2026/08/rcpt.jpg", time.Minute)

	if !signer.VerifyPath("2026/08/rcpt.jpg", exp, sig) {
		t.Fatal("valid signature rejected")
	}
	// A signature must not transfer to a different path.
	if signer.VerifyPath("2026/08/other.jpg", exp, sig) {
		t.Fatal("signature accepted for wrong path")
	}
}

func TestNewSigner_ShortKey(t *testing.T) {
	if _, err := security.NewSigner("short"); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestNewDiskReceiptStore_CreatesDir(t *testing.T) {
	signer, _ := security.NewSigner("0123456789abcdef")
	logger := zerolog.New(io.Discard)
	dir := filepath.Join(t.TempDir(), "nested", "receipts")

	if _, err := NewDiskReceiptStore(config.StorageConfig{ReceiptDir: dir}, signer, &logger); err != nil {
		t.Fatalf("NewDiskReceiptStore: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("receipt dir not created: %v", err)
	}
}
