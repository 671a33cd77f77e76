package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/rollkit/pkg/adapters/memory"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/persistence/middleware"
	"github.com/aretw0/rollkit/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func encrypted(t *testing.T, config middleware.EncryptionConfig) middleware.Middleware {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(config)
	if err != nil {
		t.Fatalf("NewEncryptionMiddleware failed: %v", err)
	}
	return mw
}

func sampleRecord(id string) *domain.RollRecord {
	total := 17.0
	return &domain.RollRecord{
		ID:        id,
		Channel:   "table",
		Formula:   "2d20kh + 5",
		Mode:      "random",
		Total:     &total,
		Roll:      json.RawMessage(`{"formula":"2d20kh + 5","terms":[],"total":17,"evaluated":true}`),
		Metadata:  map[string]string{"player": "ana"},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	ctx := context.Background()

	if err := secureStore.Save(ctx, sampleRecord("r1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The underlying store only sees the envelope.
	stored, err := underlyingStore.Load(ctx, "r1")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Formula != "" || stored.Total != nil || stored.Metadata != nil {
		t.Fatalf("Expected roll details to be hidden, got %+v", stored)
	}
	if strings.Contains(string(stored.Roll), "2d20kh") {
		t.Fatal("Expected roll tree to be encrypted")
	}
	if stored.Channel != "table" {
		t.Errorf("Expected channel to stay in clear, got %q", stored.Channel)
	}

	loaded, err := secureStore.Load(ctx, "r1")
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if loaded.Formula != "2d20kh + 5" || *loaded.Total != 17 || loaded.Metadata["player"] != "ana" {
		t.Errorf("Unexpected decrypted record: %+v", loaded)
	}

	list, err := secureStore.List(ctx, "table")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].Formula != "2d20kh + 5" {
		t.Errorf("Expected decrypted list entry, got %+v", list)
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunRollStoreContract(t, encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore()))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureStoreOld := encrypted(t, middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	if err := secureStoreOld.Save(ctx, sampleRecord("rot")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	secureStoreNew := encrypted(t, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, "rot")
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}

	loaded.Metadata["player"] = "bea"
	if err := secureStoreNew.Save(ctx, loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}

	if _, err := secureStoreOld.Load(ctx, "rot"); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_PlainRecord(t *testing.T) {
	underlyingStore := memory.NewStore()
	if err := underlyingStore.Save(context.Background(), sampleRecord("plain")); err != nil {
		t.Fatal(err)
	}
	secureStore := encrypted(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)

	_, err := secureStore.Load(context.Background(), "plain")
	if !errors.Is(err, middleware.ErrNotEncrypted) {
		t.Errorf("Expected ErrNotEncrypted, got %v", err)
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	if _, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")}); err == nil {
		t.Error("Expected error for invalid key size")
	}
}
