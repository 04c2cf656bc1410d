package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "comandas-dev",
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
	if cfg.Firestore.ProjectID != "comandas-dev" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "comandas-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.EventsTopic != "comandas-events" {
		t.Errorf("unexpected default events topic: %s", cfg.PubSub.EventsTopic)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Security.HMAC.SignatureHeader != defaultHMACSignatureHeader {
		t.Errorf("expected default signature header, got %s", cfg.Security.HMAC.SignatureHeader)
	}
	if cfg.Locale.TimeZone != defaultTimeZone {
		t.Errorf("unexpected default time zone: %s", cfg.Locale.TimeZone)
	}
	if cfg.Locale.DayCutoffHour != 6 {
		t.Errorf("unexpected default day cutoff: %d", cfg.Locale.DayCutoffHour)
	}
	if cfg.Locale.LocalHeader != "X-Local-ID" {
		t.Errorf("unexpected default local header: %s", cfg.Locale.LocalHeader)
	}
	if cfg.Locale.ReceiptPrefix != "EG" {
		t.Errorf("unexpected default receipt prefix: %s", cfg.Locale.ReceiptPrefix)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                    "9090",
		"API_SERVER_READ_TIMEOUT":            "20s",
		"API_SERVER_WRITE_TIMEOUT":           "25s",
		"API_SERVER_IDLE_TIMEOUT":            "2m",
		"API_FIRESTORE_PROJECT_ID":           "comandas-prod",
		"API_FIRESTORE_EMULATOR_HOST":        "127.0.0.1:8200",
		"API_PUBSUB_PROJECT_ID":              "comandas-events-prod",
		"API_PUBSUB_EVENTS_TOPIC":            "pos-events",
		"API_SECURITY_ENVIRONMENT":           "PROD",
		"API_SECURITY_HMAC_SECRETS":          "internal=secret://hmac/internal,backup=backup-secret",
		"API_SECURITY_HMAC_HEADER_SIGNATURE": "X-Custom-Signature",
		"API_SECURITY_HMAC_CLOCK_SKEW":       "3m",
		"API_SECURITY_HMAC_NONCE_TTL":        "10m",
		"API_LOCALE_TIMEZONE":                "America/Argentina/Cordoba",
		"API_LOCALE_DAY_CUTOFF_HOUR":         "4",
		"API_LOCALE_LOCAL_HEADER":            "X-Tenant",
		"API_LOCALE_DEFAULT_LOCAL_ID":        "local-centro",
		"API_LOCALE_RECEIPT_PREFIX":          "EGR",
	}

	secrets := map[string]string{
		"secret://hmac/internal": "internal-hmac",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
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
	if cfg.Firestore.EmulatorHost != "127.0.0.1:8200" {
		t.Errorf("unexpected emulator host: %s", cfg.Firestore.EmulatorHost)
	}
	if cfg.PubSub.ProjectID != "comandas-events-prod" {
		t.Errorf("unexpected pubsub project: %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.EventsTopic != "pos-events" {
		t.Errorf("unexpected events topic: %s", cfg.PubSub.EventsTopic)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected lowercased environment prod, got %s", cfg.Security.Environment)
	}
	if cfg.Security.HMAC.Secrets["internal"] != "internal-hmac" {
		t.Errorf("expected resolved internal hmac secret, got %s", cfg.Security.HMAC.Secrets["internal"])
	}
	if cfg.Security.HMAC.Secrets["backup"] != "backup-secret" {
		t.Errorf("expected literal backup secret, got %s", cfg.Security.HMAC.Secrets["backup"])
	}
	if cfg.Security.HMAC.SignatureHeader != "X-Custom-Signature" {
		t.Errorf("unexpected signature header %s", cfg.Security.HMAC.SignatureHeader)
	}
	if cfg.Security.HMAC.ClockSkew != 3*time.Minute {
		t.Errorf("unexpected clock skew %s", cfg.Security.HMAC.ClockSkew)
	}
	if cfg.Security.HMAC.NonceTTL != 10*time.Minute {
		t.Errorf("unexpected nonce ttl %s", cfg.Security.HMAC.NonceTTL)
	}
	if cfg.Locale.TimeZone != "America/Argentina/Cordoba" {
		t.Errorf("unexpected time zone %s", cfg.Locale.TimeZone)
	}
	if cfg.Locale.DayCutoffHour != 4 {
		t.Errorf("unexpected day cutoff %d", cfg.Locale.DayCutoffHour)
	}
	if cfg.Locale.LocalHeader != "X-Tenant" {
		t.Errorf("unexpected local header %s", cfg.Locale.LocalHeader)
	}
	if cfg.Locale.DefaultLocalID != "local-centro" {
		t.Errorf("unexpected default local id %s", cfg.Locale.DefaultLocalID)
	}
	if cfg.Locale.ReceiptPrefix != "EGR" {
		t.Errorf("unexpected receipt prefix %s", cfg.Locale.ReceiptPrefix)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=comandas-dot\n"
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
	if cfg.Firestore.ProjectID != "comandas-dot" {
		t.Errorf("expected firestore project from dotenv, got %s", cfg.Firestore.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := validation.Fields()
	if len(fields) != 1 || fields[0] != "Firestore.ProjectID" {
		t.Fatalf("unexpected missing fields %v", fields)
	}
}

func TestLoadInvalidCutoffHour(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":   "comandas-dev",
		"API_LOCALE_DAY_CUTOFF_HOUR": "24",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := validation.Fields()
	if len(fields) != 1 || fields[0] != "Locale.DayCutoffHour" {
		t.Fatalf("unexpected missing fields %v", fields)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":  "comandas-dev",
		"API_SECURITY_HMAC_SECRETS": "internal=secret://missing",
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
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "comandas-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Security.HMAC.Secrets[internal]"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	if got := missing.Names(); len(got) != 1 || got[0] != "Security.HMAC.Secrets[internal]" {
		t.Fatalf("unexpected missing secrets %v", got)
	}
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID":  "comandas-dev",
		"API_SECURITY_HMAC_SECRETS": "internal=sm://hmac/internal",
	}

	secrets := map[string]string{
		"secret://hmac/internal": "legacy-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Security.HMAC.Secrets["internal"] != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Security.HMAC.Secrets["internal"])
	}
}

func TestLocaleLocationFallsBackToUTC(t *testing.T) {
	locale := LocaleConfig{TimeZone: "Not/AZone"}
	if loc := locale.Location(); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", loc)
	}
}
