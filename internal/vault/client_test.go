package vault_test

import (
	"bytes"
	"testing"

	"calibra/internal/testutil"
	"calibra/internal/vault"
)

func setupClient(t *testing.T) *vault.Client {
	t.Helper()

	containers := testutil.SetupTestContainers(t)
	t.Cleanup(func() { containers.Cleanup(t) })

	client, err := vault.NewClient(&vault.Config{
		Address:      containers.VaultAddr,
		Token:        containers.VaultToken,
		TransitMount: "transit",
	})
	if err != nil {
		t.Fatalf("Failed to create vault client: %v", err)
	}

	if err := client.EnsureKey("test-master"); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}
	return client
}

func TestSealOpenRoundTrip(t *testing.T) {
	client := setupClient(t)

	plaintext := []byte("calibration data key material")
	ciphertext, err := client.Seal("test-master", plaintext, vault.SessionScope(42))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	opened, err := client.Open("test-master", ciphertext, vault.SessionScope(42))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("Round trip mismatch: got %q, want %q", opened, plaintext)
	}
}

func TestOpenRejectsForeignScope(t *testing.T) {
	client := setupClient(t)

	ciphertext, err := client.Seal("test-master", []byte("secret"), vault.SessionScope(1))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, err := client.Open("test-master", ciphertext, vault.SessionScope(2)); err == nil {
		t.Error("Expected open under another session's scope to fail")
	}
	if _, err := client.Open("test-master", ciphertext, vault.SignerScope("evidence-signer")); err == nil {
		t.Error("Expected open under a signer scope to fail")
	}
}

func TestHealth(t *testing.T) {
	client := setupClient(t)

	if err := client.Health(); err != nil {
		t.Errorf("Expected healthy dev vault, got %v", err)
	}
}

func TestEnsureKeyIsIdempotent(t *testing.T) {
	client := setupClient(t)

	if err := client.EnsureKey("test-master"); err != nil {
		t.Errorf("Repeated key create should be a no-op, got %v", err)
	}
}
