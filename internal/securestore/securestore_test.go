package securestore_test

import (
	"testing"

	"calibra/internal/keymanager"
	"calibra/internal/models"
	"calibra/internal/securestore"
	"calibra/internal/service"
	"calibra/internal/testutil"
	"calibra/internal/vault"
)

func setupStore(t *testing.T) (*testutil.TestContainers, *testutil.Fixtures, *securestore.SecureStore) {
	t.Helper()

	containers := testutil.SetupTestContainers(t)
	t.Cleanup(func() { containers.Cleanup(t) })

	fixtures := testutil.SetupFixtures(t, containers.DB)

	vaultClient, err := vault.NewClient(&vault.Config{
		Address:      containers.VaultAddr,
		Token:        containers.VaultToken,
		TransitMount: "transit",
	})
	if err != nil {
		t.Fatalf("Failed to create vault client: %v", err)
	}

	km, err := keymanager.NewKeyManager(containers.DB, vaultClient)
	if err != nil {
		t.Fatalf("Failed to create key manager: %v", err)
	}

	return containers, fixtures, securestore.NewSecureStore(containers.DB, km)
}

func TestSealAndDecryptJustification(t *testing.T) {
	_, fixtures, store := setupStore(t)

	session := fixtures.CreateSession(t, "Evidence Session", models.SessionStatusInProgress)

	recordID, err := store.SealJustification(session.ID, fixtures.Ratings[0].ID, "normalized against peer group")
	if err != nil {
		t.Fatalf("Failed to seal justification: %v", err)
	}
	if recordID == 0 {
		t.Fatal("Expected a record ID")
	}

	data, err := store.DecryptRecord(recordID)
	if err != nil {
		t.Fatalf("Failed to decrypt record: %v", err)
	}
	if data.Fields["justification"] != "normalized against peer group" {
		t.Errorf("Expected justification to round-trip, got %v", data.Fields["justification"])
	}
}

func TestHashChainLinksRecords(t *testing.T) {
	_, fixtures, store := setupStore(t)

	session := fixtures.CreateSession(t, "Chained Session", models.SessionStatusInProgress)

	for i, text := range []string{"first proposal", "revised proposal", "final proposal"} {
		if _, err := store.SealJustification(session.ID, fixtures.Ratings[i].ID, text); err != nil {
			t.Fatalf("Failed to seal record %d: %v", i, err)
		}
	}

	ok, notes, err := store.VerifyChain(session.ID)
	if err != nil {
		t.Fatalf("Failed to verify chain: %v", err)
	}
	if !ok {
		t.Fatalf("Expected intact chain, got problems: %v", notes)
	}

	records, err := store.GetRecordsBySession(session.ID)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	sessions, err := store.ListChainedSessions()
	if err != nil {
		t.Fatalf("Failed to list chained sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0] != session.ID {
		t.Errorf("Expected chained session %d, got %v", session.ID, sessions)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	containers, fixtures, store := setupStore(t)

	session := fixtures.CreateSession(t, "Tampered Session", models.SessionStatusInProgress)

	recordID, err := store.SealJustification(session.ID, fixtures.Ratings[0].ID, "original text")
	if err != nil {
		t.Fatalf("Failed to seal record: %v", err)
	}
	if _, err := store.SealJustification(session.ID, fixtures.Ratings[1].ID, "second record"); err != nil {
		t.Fatalf("Failed to seal record: %v", err)
	}

	// Flip a byte of the first record's ciphertext.
	if _, err := containers.DB.Exec(`
		UPDATE secure_records
		SET encrypted_data = set_byte(encrypted_data, 0, (get_byte(encrypted_data, 0) + 1) % 256)
		WHERE id = $1
	`, recordID); err != nil {
		t.Fatalf("Failed to tamper with record: %v", err)
	}

	ok, problems, err := store.VerifyChain(session.ID)
	if err != nil {
		t.Fatalf("Failed to verify chain: %v", err)
	}
	if ok {
		t.Fatal("Expected tampering to be detected")
	}
	if len(problems) == 0 {
		t.Error("Expected problem descriptions for the tampered record")
	}

	// Decryption of the tampered record must fail too.
	if _, err := store.DecryptRecord(recordID); err == nil {
		t.Error("Expected decryption of tampered record to fail")
	}
}

func TestSealCloseRecord(t *testing.T) {
	_, fixtures, store := setupStore(t)

	session := fixtures.CreateSession(t, "Closing Session", models.SessionStatusInProgress)

	payload := &service.CloseResult{AppliedAdjustments: 2}
	if err := store.SealCloseRecord(session.ID, payload); err != nil {
		t.Fatalf("Failed to seal close record: %v", err)
	}

	records, err := store.GetRecordsBySession(session.ID)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].RecordType != securestore.RecordTypeCloseRecord {
		t.Errorf("Expected record type %s, got %s", securestore.RecordTypeCloseRecord, records[0].RecordType)
	}
}
