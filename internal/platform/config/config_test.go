package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "hf-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "hf-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "hf-dev" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Lock.Backend != LockBackendMemory {
		t.Errorf("expected memory lock backend, got %s", cfg.Lock.Backend)
	}
	if cfg.Lock.TTL != defaultLockTTL || cfg.Lock.Wait != defaultLockWait {
		t.Errorf("unexpected lock timings ttl=%s wait=%s", cfg.Lock.TTL, cfg.Lock.Wait)
	}
	if !cfg.Checkout.AllowGuest {
		t.Errorf("expected guest checkout enabled by default")
	}
	if cfg.Cart.DefaultCurrency != "JPY" {
		t.Errorf("expected JPY currency, got %s", cfg.Cart.DefaultCurrency)
	}
	if !cfg.Cart.TaxRate.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("unexpected tax rate %s", cfg.Cart.TaxRate)
	}
	if cfg.Cart.FreeShippingCarrier != "freeshipping" || cfg.Cart.FreePaymentCode != "Simple free" {
		t.Errorf("unexpected free order rule %+v", cfg.Cart)
	}
	if cfg.PubSub.CloneTopic != "" {
		t.Errorf("expected publishing disabled, got topic %s", cfg.PubSub.CloneTopic)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                "9090",
		"API_SERVER_IDLE_TIMEOUT":        "2m",
		"API_FIREBASE_PROJECT_ID":        "hf-prod",
		"API_FIREBASE_CHECK_REVOKED":     "yes",
		"API_FIRESTORE_PROJECT_ID":       "hf-fire",
		"API_LOCK_BACKEND":               "Redis",
		"API_LOCK_TTL":                   "30s",
		"API_REDIS_ADDR":                 "10.0.0.5:6379",
		"API_REDIS_PASSWORD":             "sm://redis/password",
		"API_REDIS_DB":                   "2",
		"API_PUBSUB_CLONE_TOPIC":         "cart-events",
		"API_CHECKOUT_ALLOW_GUEST":       "false",
		"API_CART_DEFAULT_CURRENCY":      "usd",
		"API_CART_TAX_RATE":              "0.08",
		"API_CART_FREE_PAYMENT_CODE":     "free",
		"API_CART_FREE_SHIPPING_CARRIER": "gratis",
	}

	var seen string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		seen = ref
		return "redis-secret", nil
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.ProjectID != "hf-fire" {
		t.Errorf("unexpected firestore project %s", cfg.Firestore.ProjectID)
	}
	if !cfg.Firebase.CheckRevoked {
		t.Errorf("expected revocation checks enabled")
	}
	if cfg.Lock.Backend != LockBackendRedis || cfg.Lock.TTL != 30*time.Second {
		t.Errorf("unexpected lock config %+v", cfg.Lock)
	}
	if seen != "secret://redis/password" {
		t.Errorf("expected normalised secret ref, got %s", seen)
	}
	if cfg.Redis.Password != "redis-secret" || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Checkout.AllowGuest {
		t.Errorf("expected guest checkout disabled")
	}
	if cfg.Cart.DefaultCurrency != "USD" {
		t.Errorf("expected upper-cased currency, got %s", cfg.Cart.DefaultCurrency)
	}
	if !cfg.Cart.TaxRate.Equal(decimal.RequireFromString("0.08")) {
		t.Errorf("unexpected tax rate %s", cfg.Cart.TaxRate)
	}
	if cfg.Cart.FreePaymentCode != "free" || cfg.Cart.FreeShippingCarrier != "gratis" {
		t.Errorf("unexpected free order rule %+v", cfg.Cart)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "# local\nexport API_SERVER_PORT=7070\nAPI_FIREBASE_PROJECT_ID=\"hf-dot\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "hf-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	env := map[string]string{
		"API_LOCK_BACKEND": "redis",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := validationErr.Fields()
	want := map[string]bool{"Firebase.ProjectID": false, "Firestore.ProjectID": false, "Redis.Addr": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, found := range want {
		if !found {
			t.Errorf("expected %s in validation fields %v", field, fields)
		}
	}
}

func TestLoadRejectsUnknownLockBackend(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "hf-dev",
		"API_LOCK_BACKEND":        "etcd",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if fields := validationErr.Fields(); len(fields) != 1 || fields[0] != "Lock.Backend" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "hf-dev",
		"API_REDIS_PASSWORD":      "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Errorf("expected resolver not configured error, got %v", err)
	}
}
