// Package vault talks to HashiCorp Vault's transit engine for the
// evidence key hierarchy, plus local AES-GCM helpers for payloads that
// never leave the process.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"
)

// Scope binds a transit operation to the entity the key material belongs
// to. It is sent as the key derivation context, so a ciphertext sealed for
// one session cannot be opened under another.
type Scope struct {
	kind string
	id   string
}

// SessionScope scopes key material to a calibration session.
func SessionScope(sessionID uint) Scope {
	return Scope{kind: "session", id: fmt.Sprintf("%d", sessionID)}
}

// SignerScope scopes key material to a named service signer.
func SignerScope(name string) Scope {
	return Scope{kind: "signer", id: name}
}

// encode produces the canonical wire form. The encoding must be stable:
// a scope that encodes differently on decrypt will not open the ciphertext.
func (s Scope) encode() string {
	return base64.StdEncoding.EncodeToString([]byte(s.kind + ":" + s.id))
}

// Config holds Vault connection settings
type Config struct {
	Address      string
	Token        string
	TransitMount string
}

// Client wraps the transit engine behind seal/open semantics
type Client struct {
	api   *api.Client
	mount string
}

// NewClient connects to Vault and makes sure the transit mount exists
func NewClient(cfg *Config) (*Client, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = cfg.Address

	apiClient, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	apiClient.SetToken(cfg.Token)

	c := &Client{api: apiClient, mount: cfg.TransitMount}
	if err := c.ensureTransitMount(); err != nil {
		return nil, fmt.Errorf("failed to prepare transit mount: %w", err)
	}
	return c, nil
}

func (c *Client) ensureTransitMount() error {
	ctx := context.Background()

	mounts, err := c.api.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mounts: %w", err)
	}
	if _, ok := mounts[c.mount+"/"]; ok {
		return nil
	}

	return c.api.Sys().MountWithContext(ctx, c.mount, &api.MountInput{
		Type:        "transit",
		Description: "Transit encryption for calibration evidence",
		Config: api.MountConfigInput{
			DefaultLeaseTTL: "768h",
			MaxLeaseTTL:     "8760h",
		},
	})
}

// EnsureKey creates the named AES-256-GCM transit key. The key is derived,
// so every seal/open requires a scope and the scope participates in key
// derivation. Vault treats a repeated create of the same key as a no-op,
// so callers may invoke this on every startup.
func (c *Client) EnsureKey(name string) error {
	path := fmt.Sprintf("%s/keys/%s", c.mount, name)
	_, err := c.api.Logical().WriteWithContext(context.Background(), path, map[string]interface{}{
		"type":       "aes256-gcm96",
		"exportable": false,
		"derived":    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create key %s: %w", name, err)
	}
	return nil
}

// Seal encrypts plaintext under the named transit key, bound to scope.
func (c *Client) Seal(keyName string, plaintext []byte, scope Scope) (string, error) {
	path := fmt.Sprintf("%s/encrypt/%s", c.mount, keyName)
	secret, err := c.api.Logical().WriteWithContext(context.Background(), path, map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
		"context":   scope.encode(),
	})
	if err != nil {
		return "", fmt.Errorf("seal failed for key %s: %w", keyName, err)
	}

	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return "", fmt.Errorf("transit returned no ciphertext")
	}
	return ciphertext, nil
}

// Open decrypts a transit ciphertext. The scope must match the one the
// ciphertext was sealed under.
func (c *Client) Open(keyName string, ciphertext string, scope Scope) ([]byte, error) {
	path := fmt.Sprintf("%s/decrypt/%s", c.mount, keyName)
	secret, err := c.api.Logical().WriteWithContext(context.Background(), path, map[string]interface{}{
		"ciphertext": ciphertext,
		"context":    scope.encode(),
	})
	if err != nil {
		return nil, fmt.Errorf("open failed for key %s: %w", keyName, err)
	}

	encoded, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("transit returned no plaintext")
	}
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plaintext: %w", err)
	}
	return plaintext, nil
}

// Health reports whether Vault is reachable, initialized and unsealed
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := c.api.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized {
		return fmt.Errorf("vault is not initialized")
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

// SealLocal encrypts with AES-256-GCM using a key already held in memory.
// Used for per-session data keys so record payloads never transit Vault.
func SealLocal(plaintext, key, additionalData []byte) (ciphertext []byte, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("GCM creation failed: %w", err)
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce generation failed: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, additionalData), nonce, nil
}

// OpenLocal reverses SealLocal
func OpenLocal(ciphertext, key, nonce, additionalData []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("GCM creation failed: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
