package keymanager

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"calibra/internal/vault"
)

const signerName = "evidence-signer"

// KeyManager manages the evidence key hierarchy: a Vault-held master key,
// one service signing keypair, and a symmetric data key per calibration
// session.
type KeyManager struct {
	db          *sql.DB
	vault       *vault.Client
	masterKeyID string
}

// NewKeyManager creates a new KeyManager instance
func NewKeyManager(db *sql.DB, vaultClient *vault.Client) (*KeyManager, error) {
	km := &KeyManager{
		db:          db,
		vault:       vaultClient,
		masterKeyID: "calibra-master-key",
	}

	if err := km.initMasterKey(); err != nil {
		return nil, fmt.Errorf("failed to initialize master key: %w", err)
	}

	if err := km.ensureSigningKey(); err != nil {
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}

	return km, nil
}

func (km *KeyManager) initMasterKey() error {
	return km.vault.EnsureKey(km.masterKeyID)
}

// ensureSigningKey generates the service Ed25519 keypair if absent. The
// private key is stored Vault-encrypted; only one signer row exists.
func (km *KeyManager) ensureSigningKey() error {
	var exists bool
	err := km.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM signing_keys WHERE name = $1)`, signerName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("signing key check failed: %w", err)
	}
	if exists {
		return nil
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("key generation failed: %w", err)
	}

	encryptedPrivateKey, err := km.vault.Seal(km.masterKeyID, priv, vault.SignerScope(signerName))
	if err != nil {
		return fmt.Errorf("private key encryption failed: %w", err)
	}

	query := `
		INSERT INTO signing_keys (name, public_key, encrypted_private_key, key_version, created_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (name) DO NOTHING
	`

	_, err = km.db.Exec(query, signerName, hex.EncodeToString(pub), encryptedPrivateKey, time.Now())
	if err != nil {
		return fmt.Errorf("database insert failed: %w", err)
	}

	return nil
}

// SigningKey retrieves and decrypts the service signing key
func (km *KeyManager) SigningKey() (ed25519.PrivateKey, error) {
	var encryptedPrivateKey string

	query := `SELECT encrypted_private_key FROM signing_keys WHERE name = $1`
	err := km.db.QueryRow(query, signerName).Scan(&encryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("signing key not found: %w", err)
	}

	privateKeyBytes, err := km.vault.Open(km.masterKeyID, encryptedPrivateKey, vault.SignerScope(signerName))
	if err != nil {
		return nil, fmt.Errorf("private key decryption failed: %w", err)
	}

	return privateKeyBytes, nil
}

// PublicKey retrieves the service verification key
func (km *KeyManager) PublicKey() (ed25519.PublicKey, error) {
	var publicKeyHex string

	query := `SELECT public_key FROM signing_keys WHERE name = $1`
	err := km.db.QueryRow(query, signerName).Scan(&publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("signing key not found: %w", err)
	}

	publicKey, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	return publicKey, nil
}

// EnsureSessionKey generates a 256-bit data key for a calibration session
// if one does not exist yet
func (km *KeyManager) EnsureSessionKey(sessionID uint) error {
	var exists bool
	err := km.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM session_keys WHERE session_id = $1)`, sessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("session key check failed: %w", err)
	}
	if exists {
		return nil
	}

	sessionKey := make([]byte, 32)
	if _, err := rand.Read(sessionKey); err != nil {
		return fmt.Errorf("key generation failed: %w", err)
	}

	hashBytes := sha256.Sum256(sessionKey)
	keyHash := hex.EncodeToString(hashBytes[:])

	encryptedKey, err := km.vault.Seal(km.masterKeyID, sessionKey, vault.SessionScope(sessionID))
	if err != nil {
		return fmt.Errorf("key encryption failed: %w", err)
	}

	query := `
		INSERT INTO session_keys (session_id, encrypted_key_material, key_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING
	`

	_, err = km.db.Exec(query, sessionID, encryptedKey, keyHash, time.Now())
	if err != nil {
		return fmt.Errorf("database insert failed: %w", err)
	}

	return nil
}

// GetSessionKey retrieves and decrypts a session data key
func (km *KeyManager) GetSessionKey(sessionID uint) ([]byte, error) {
	var encryptedKey string

	query := `SELECT encrypted_key_material FROM session_keys WHERE session_id = $1`
	err := km.db.QueryRow(query, sessionID).Scan(&encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("session key not found: %w", err)
	}

	sessionKey, err := km.vault.Open(km.masterKeyID, encryptedKey, vault.SessionScope(sessionID))
	if err != nil {
		return nil, fmt.Errorf("key decryption failed: %w", err)
	}

	return sessionKey, nil
}

// GetSessionKeyHash retrieves the hash of a session data key
func (km *KeyManager) GetSessionKeyHash(sessionID uint) (string, error) {
	var keyHash string

	query := `SELECT key_hash FROM session_keys WHERE session_id = $1`
	err := km.db.QueryRow(query, sessionID).Scan(&keyHash)
	if err != nil {
		return "", fmt.Errorf("session key not found: %w", err)
	}

	return keyHash, nil
}

// DeriveDataEncryptionKey combines the session key and the signing key
// seed into a per-session AES-256 key
func (km *KeyManager) DeriveDataEncryptionKey(sessionID uint) ([]byte, error) {
	sessionKey, err := km.GetSessionKey(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session key: %w", err)
	}

	signingKey, err := km.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get signing key: %w", err)
	}

	h := sha256.New()
	h.Write(sessionKey)
	h.Write(signingKey.Seed())
	h.Write([]byte(fmt.Sprintf("session:%d", sessionID)))
	seed := h.Sum(nil)

	finalKey := sha256.Sum256(seed)
	return finalKey[:], nil
}

// GetActiveMasterKeyID returns the current master key identifier
func (km *KeyManager) GetActiveMasterKeyID() string {
	return km.masterKeyID
}
