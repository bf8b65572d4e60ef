package firestore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/hanko-field/cartclone/internal/platform/config"
)

func TestProviderRequiresProjectID(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	p := NewProvider(config.FirestoreConfig{})
	if _, err := p.Client(context.Background()); err == nil {
		t.Fatalf("expected error without project id")
	}
}

func TestProviderClosedRejectsClient(t *testing.T) {
	p := NewProvider(config.FirestoreConfig{ProjectID: "demo"})
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("close before dial: %v", err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := p.Client(context.Background()); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ErrProviderClosed, got %v", err)
	}
	if err := p.Ping(context.Background()); !errors.Is(err, ErrProviderClosed) {
		t.Fatalf("expected ping to surface ErrProviderClosed, got %v", err)
	}

	var nilProvider *Provider
	if err := nilProvider.Close(context.Background()); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestProviderExportsConfiguredEmulatorHost(t *testing.T) {
	t.Setenv("FIRESTORE_EMULATOR_HOST", "")
	p := NewProvider(config.FirestoreConfig{ProjectID: "demo", EmulatorHost: " localhost:8081 "})

	if opts := p.clientOptions(); len(opts) != 3 {
		t.Fatalf("expected emulator client options, got %d", len(opts))
	}
	if got := os.Getenv("FIRESTORE_EMULATOR_HOST"); got != "localhost:8081" {
		t.Fatalf("expected emulator host exported, got %q", got)
	}
}

func TestProviderUsesProductionOptionsWithoutEmulator(t *testing.T) {
	t.Setenv("FIRESTORE_EMULATOR_HOST", "")
	p := NewProvider(config.FirestoreConfig{ProjectID: "demo"})
	if opts := p.clientOptions(); len(opts) != 0 {
		t.Fatalf("expected default client options, got %d", len(opts))
	}
}

func TestCollectionRejectsEmptyDocumentID(t *testing.T) {
	coll := NewCollection[map[string]any](NewProvider(config.FirestoreConfig{ProjectID: "demo"}), "carts", nil)
	_, err := coll.DocumentRef(context.Background(), "  ")
	var repoErr *Error
	if !errors.As(err, &repoErr) || repoErr.Op != "carts.document" {
		t.Fatalf("expected classified carts.document error, got %v", err)
	}
}
