package securestore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"calibra/internal/keymanager"
	"calibra/internal/vault"
)

// Record types written to the evidence store
const (
	RecordTypeJustification = "justification"
	RecordTypeCloseRecord   = "close_record"
)

// SecureRecord represents an encrypted and signed evidence record
type SecureRecord struct {
	ID                 int64     `json:"id"`
	SessionID          uint      `json:"session_id"`
	CreatedAt          time.Time `json:"created_at"`
	EncryptedData      []byte    `json:"-"`
	EncryptionNonce    []byte    `json:"-"`
	EncryptionTag      []byte    `json:"-"`
	KeyVersion         int       `json:"key_version"`
	MasterKeyID        string    `json:"master_key_id"`
	SessionKeyHash     string    `json:"session_key_hash"`
	DataSignature      string    `json:"data_signature"`
	SignaturePublicKey string    `json:"signature_public_key"`
	RecordType         string    `json:"record_type"`
	PrevRecordHash     string    `json:"prev_record_hash"`
	ChainHash          string    `json:"chain_hash"`
}

// PlainData represents the unencrypted record payload
type PlainData struct {
	Fields   map[string]interface{} `json:"fields"`
	Metadata map[string]string      `json:"metadata,omitempty"`
}

const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// SecureStore keeps tamper-evident copies of calibration evidence: each
// record is AES-256-GCM encrypted, Ed25519 signed, and linked into a
// per-session hash chain.
type SecureStore struct {
	db         *sql.DB
	keyManager *keymanager.KeyManager
}

// NewSecureStore creates a new SecureStore instance
func NewSecureStore(db *sql.DB, keyManager *keymanager.KeyManager) *SecureStore {
	return &SecureStore{
		db:         db,
		keyManager: keyManager,
	}
}

// SealJustification archives an adjustment justification in the session's
// evidence chain and returns the record ID
func (ss *SecureStore) SealJustification(sessionID, ratingID uint, text string) (int64, error) {
	data := &PlainData{
		Fields: map[string]interface{}{
			"rating_id":     ratingID,
			"justification": text,
		},
	}

	record, err := ss.createRecord(sessionID, RecordTypeJustification, data)
	if err != nil {
		return 0, err
	}

	return record.ID, nil
}

// SealCloseRecord archives the full close outcome in the session's
// evidence chain
func (ss *SecureStore) SealCloseRecord(sessionID uint, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("unmarshal failed: %w", err)
	}

	data := &PlainData{Fields: fields}

	_, err = ss.createRecord(sessionID, RecordTypeCloseRecord, data)
	return err
}

// createRecord encrypts, signs, chains, and stores a payload
func (ss *SecureStore) createRecord(sessionID uint, recordType string, data *PlainData) (*SecureRecord, error) {
	if err := ss.keyManager.EnsureSessionKey(sessionID); err != nil {
		return nil, fmt.Errorf("session key setup failed: %w", err)
	}

	plainBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal failed: %w", err)
	}

	dek, err := ss.keyManager.DeriveDataEncryptionKey(sessionID)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	signingKey, err := ss.keyManager.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("signing key retrieval failed: %w", err)
	}

	additionalData := []byte(fmt.Sprintf("session:%d:type:%s", sessionID, recordType))
	ciphertext, nonce, err := vault.SealLocal(plainBytes, dek, additionalData)
	if err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}

	// GCM appends the 16-byte tag; split it off for storage
	tagSize := 16
	encryptedData := ciphertext[:len(ciphertext)-tagSize]
	tag := ciphertext[len(ciphertext)-tagSize:]

	// Signature covers encrypted data + nonce + tag
	signatureInput := append(encryptedData, nonce...)
	signatureInput = append(signatureInput, tag...)
	signature := ed25519.Sign(signingKey, signatureInput)

	prevHash, err := ss.getLatestHash(sessionID)
	if err != nil {
		return nil, fmt.Errorf("prev hash retrieval failed: %w", err)
	}

	now := time.Now().UTC()
	chainInput := fmt.Sprintf("%s:%s:%d:%s:%d",
		prevHash,
		hex.EncodeToString(signature),
		sessionID,
		recordType,
		now.Unix(),
	)
	chainHashBytes := sha256.Sum256([]byte(chainInput))
	chainHash := hex.EncodeToString(chainHashBytes[:])

	sessionKeyHash, err := ss.keyManager.GetSessionKeyHash(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session key hash retrieval failed: %w", err)
	}

	publicKey := ed25519.PublicKey(signingKey[32:])
	record := &SecureRecord{
		SessionID:          sessionID,
		CreatedAt:          now,
		EncryptedData:      encryptedData,
		EncryptionNonce:    nonce,
		EncryptionTag:      tag,
		KeyVersion:         1,
		MasterKeyID:        ss.keyManager.GetActiveMasterKeyID(),
		SessionKeyHash:     sessionKeyHash,
		DataSignature:      hex.EncodeToString(signature),
		SignaturePublicKey: hex.EncodeToString(publicKey),
		RecordType:         recordType,
		PrevRecordHash:     prevHash,
		ChainHash:          chainHash,
	}

	if err := ss.insertRecord(record); err != nil {
		return nil, fmt.Errorf("database insert failed: %w", err)
	}

	return record, nil
}

// DecryptRecord verifies and decrypts a stored record
func (ss *SecureStore) DecryptRecord(recordID int64) (*PlainData, error) {
	record, err := ss.loadRecord(recordID)
	if err != nil {
		return nil, fmt.Errorf("record load failed: %w", err)
	}

	return ss.DecryptRecordData(record)
}

// DecryptRecordData decrypts the data from a SecureRecord
func (ss *SecureStore) DecryptRecordData(record *SecureRecord) (*PlainData, error) {
	publicKey, err := hex.DecodeString(record.SignaturePublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	signature, err := hex.DecodeString(record.DataSignature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	signatureInput := append(record.EncryptedData, record.EncryptionNonce...)
	signatureInput = append(signatureInput, record.EncryptionTag...)

	if !ed25519.Verify(ed25519.PublicKey(publicKey), signatureInput, signature) {
		return nil, fmt.Errorf("signature verification failed - data may be tampered")
	}

	dek, err := ss.keyManager.DeriveDataEncryptionKey(record.SessionID)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}

	additionalData := []byte(fmt.Sprintf("session:%d:type:%s", record.SessionID, record.RecordType))
	ciphertext := append(record.EncryptedData, record.EncryptionTag...)
	plainBytes, err := vault.OpenLocal(ciphertext, dek, record.EncryptionNonce, additionalData)
	if err != nil {
		return nil, fmt.Errorf("decryption failed - data may be corrupted: %w", err)
	}

	var data PlainData
	if err := json.Unmarshal(plainBytes, &data); err != nil {
		return nil, fmt.Errorf("unmarshal failed: %w", err)
	}

	return &data, nil
}

// VerifyChain verifies the integrity of a session's hash chain
func (ss *SecureStore) VerifyChain(sessionID uint) (bool, []string, error) {
	query := `
		SELECT id, session_id, created_at, encrypted_data,
		       encryption_nonce, encryption_tag, key_version,
		       master_key_id, session_key_hash, data_signature,
		       signature_public_key, record_type,
		       prev_record_hash, chain_hash
		FROM secure_records
		WHERE session_id = $1
		ORDER BY id ASC
	`

	rows, err := ss.db.Query(query, sessionID)
	if err != nil {
		return false, nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	prevHash := genesisHash
	recordCount := 0
	var problems []string

	for rows.Next() {
		var record SecureRecord

		err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.CreatedAt,
			&record.EncryptedData,
			&record.EncryptionNonce,
			&record.EncryptionTag,
			&record.KeyVersion,
			&record.MasterKeyID,
			&record.SessionKeyHash,
			&record.DataSignature,
			&record.SignaturePublicKey,
			&record.RecordType,
			&record.PrevRecordHash,
			&record.ChainHash,
		)
		if err != nil {
			return false, nil, fmt.Errorf("scan failed: %w", err)
		}

		if record.PrevRecordHash != prevHash {
			problems = append(problems, fmt.Sprintf("chain broken at record %d: expected prev_hash=%s, got=%s",
				record.ID, prevHash, record.PrevRecordHash))
		}

		publicKey, err := hex.DecodeString(record.SignaturePublicKey)
		if err != nil {
			problems = append(problems, fmt.Sprintf("record %d: invalid public key", record.ID))
			continue
		}

		signature, err := hex.DecodeString(record.DataSignature)
		if err != nil {
			problems = append(problems, fmt.Sprintf("record %d: invalid signature", record.ID))
			continue
		}

		signatureInput := append(record.EncryptedData, record.EncryptionNonce...)
		signatureInput = append(signatureInput, record.EncryptionTag...)

		if !ed25519.Verify(ed25519.PublicKey(publicKey), signatureInput, signature) {
			problems = append(problems, fmt.Sprintf("record %d: signature verification failed", record.ID))
		}

		prevHash = record.ChainHash
		recordCount++
	}
	if err := rows.Err(); err != nil {
		return false, nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	if len(problems) > 0 {
		return false, problems, nil
	}

	return true, []string{fmt.Sprintf("chain verified: %d records intact", recordCount)}, nil
}

// ListChainedSessions returns the IDs of sessions with evidence records
func (ss *SecureStore) ListChainedSessions() ([]uint, error) {
	rows, err := ss.db.Query(`SELECT DISTINCT session_id FROM secure_records ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var ids []uint
	for rows.Next() {
		var id uint
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetRecordsBySession retrieves a session's records (metadata only)
func (ss *SecureStore) GetRecordsBySession(sessionID uint) ([]*SecureRecord, error) {
	query := `
		SELECT id, session_id, created_at, key_version,
		       master_key_id, session_key_hash, record_type, chain_hash
		FROM secure_records
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := ss.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []*SecureRecord
	for rows.Next() {
		var record SecureRecord

		err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.CreatedAt,
			&record.KeyVersion,
			&record.MasterKeyID,
			&record.SessionKeyHash,
			&record.RecordType,
			&record.ChainHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

// insertRecord stores a record in the database
func (ss *SecureStore) insertRecord(record *SecureRecord) error {
	query := `
		INSERT INTO secure_records (
			session_id, created_at, encrypted_data,
			encryption_nonce, encryption_tag, key_version,
			master_key_id, session_key_hash, data_signature,
			signature_public_key, record_type,
			prev_record_hash, chain_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	return ss.db.QueryRow(
		query,
		record.SessionID,
		record.CreatedAt,
		record.EncryptedData,
		record.EncryptionNonce,
		record.EncryptionTag,
		record.KeyVersion,
		record.MasterKeyID,
		record.SessionKeyHash,
		record.DataSignature,
		record.SignaturePublicKey,
		record.RecordType,
		record.PrevRecordHash,
		record.ChainHash,
	).Scan(&record.ID)
}

// loadRecord retrieves a complete record from the database
func (ss *SecureStore) loadRecord(recordID int64) (*SecureRecord, error) {
	record := &SecureRecord{}

	query := `
		SELECT id, session_id, created_at, encrypted_data,
		       encryption_nonce, encryption_tag, key_version,
		       master_key_id, session_key_hash, data_signature,
		       signature_public_key, record_type,
		       prev_record_hash, chain_hash
		FROM secure_records
		WHERE id = $1
	`

	err := ss.db.QueryRow(query, recordID).Scan(
		&record.ID,
		&record.SessionID,
		&record.CreatedAt,
		&record.EncryptedData,
		&record.EncryptionNonce,
		&record.EncryptionTag,
		&record.KeyVersion,
		&record.MasterKeyID,
		&record.SessionKeyHash,
		&record.DataSignature,
		&record.SignaturePublicKey,
		&record.RecordType,
		&record.PrevRecordHash,
		&record.ChainHash,
	)
	if err != nil {
		return nil, err
	}

	return record, nil
}

// getLatestHash retrieves the latest chain hash for a session
func (ss *SecureStore) getLatestHash(sessionID uint) (string, error) {
	var hash string
	err := ss.db.QueryRow(`
		SELECT chain_hash
		FROM secure_records
		WHERE session_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, sessionID).Scan(&hash)

	if err == sql.ErrNoRows {
		return genesisHash, nil
	}

	return hash, err
}
