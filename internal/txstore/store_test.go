package txstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/keithlinneman/chaingate/internal/log"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return New(db, log.Nop()), mock, db
}

func txRows(hash string, chainID int64, data string) *sqlmock.Rows {
	return sqlmock.
		NewRows([]string{"hash", "chain_id", "data"}).
		AddRow(hash, chainID, []byte(data))
}

func TestLookup_LowercaseInput(t *testing.T) {
	store, mock, db := newTestStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT hash, chain_id, data").
		WithArgs("abc123", "ABC123").
		WillReturnRows(txRows("abc123", 5, `{"value":"42"}`))

	tx, found, err := store.Lookup(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected record to be found")
	}
	if tx.Hash != "abc123" || tx.ChainID != 5 {
		t.Errorf("tx = %+v", tx)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLookup_UppercaseInputFindsLowercaseRecord(t *testing.T) {
	store, mock, db := newTestStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT hash, chain_id, data").
		WithArgs("abc123", "ABC123").
		WillReturnRows(txRows("abc123", 5, `{"value":"42"}`))

	tx, found, err := store.Lookup(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || tx.Hash != "abc123" {
		t.Errorf("found=%v tx=%+v", found, tx)
	}
}

func TestLookup_MixedCaseInputIsNotFoundWithoutQuery(t *testing.T) {
	store, mock, db := newTestStore(t)
	defer db.Close()

	// no ExpectQuery: a mixed-case hash must short-circuit

	_, found, err := store.Lookup(context.Background(), "aBc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("mixed-case input must never match")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("mixed-case input should not hit the database: %v", err)
	}
}

func TestLookup_AbsentRecordIsNotAnError(t *testing.T) {
	store, mock, db := newTestStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT hash, chain_id, data").
		WithArgs("feed00", "FEED00").
		WillReturnError(sql.ErrNoRows)

	_, found, err := store.Lookup(context.Background(), "feed00")
	if err != nil {
		t.Fatalf("not-found must not be an error, got %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestLookup_DriverErrorSurfaces(t *testing.T) {
	store, mock, db := newTestStore(t)
	defer db.Close()

	mock.ExpectQuery("SELECT hash, chain_id, data").
		WithArgs("abc123", "ABC123").
		WillReturnError(sql.ErrConnDone)

	_, _, err := store.Lookup(context.Background(), "abc123")
	if err == nil {
		t.Fatal("driver failure should surface as an error")
	}
}

func TestMerged_ObjectPayload(t *testing.T) {
	tx := Transaction{Hash: "abc", ChainID: 7, Data: json.RawMessage(`{"from":"a","to":"b"}`)}
	m := tx.Merged()
	if m["from"] != "a" || m["to"] != "b" {
		t.Errorf("payload fields lost: %v", m)
	}
	if m["chainId"] != int64(7) {
		t.Errorf("chainId = %v (%T)", m["chainId"], m["chainId"])
	}
}

func TestMerged_NonObjectPayload(t *testing.T) {
	tx := Transaction{Hash: "abc", ChainID: 7, Data: json.RawMessage(`"raw-string"`)}
	m := tx.Merged()
	if _, ok := m["data"]; !ok {
		t.Errorf("non-object payload should be kept under data: %v", m)
	}
	if m["chainId"] != int64(7) {
		t.Errorf("chainId = %v", m["chainId"])
	}
}
