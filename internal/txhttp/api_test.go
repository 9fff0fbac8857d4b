package txhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keithlinneman/chaingate/internal/apihttp"
	"github.com/keithlinneman/chaingate/internal/log"
	"github.com/keithlinneman/chaingate/internal/txstore"
	"github.com/keithlinneman/chaingate/internal/xerrors"
)

type fakeLookup struct {
	byHash map[string]txstore.Transaction
	err    error
}

func (f fakeLookup) Lookup(ctx context.Context, hash string) (txstore.Transaction, bool, error) {
	if f.err != nil {
		return txstore.Transaction{}, false, f.err
	}
	tx, ok := f.byHash[hash]
	return tx, ok, nil
}

func newServer(t *testing.T, store TxLookup, outcomes *[]string) http.Handler {
	t.Helper()
	api := NewAPI(store, log.Nop())
	if outcomes != nil {
		api.OnLookup = func(o string) { *outcomes = append(*outcomes, o) }
	}
	return apihttp.New(apihttp.Options{Logger: log.Nop(), Routes: []apihttp.RouteTable{api}})
}

func TestGetTx_MergesChainID(t *testing.T) {
	var outcomes []string
	store := fakeLookup{byHash: map[string]txstore.Transaction{
		"abc123": {Hash: "abc123", ChainID: 42, Data: json.RawMessage(`{"value":"9000"}`)},
	}}
	srv := newServer(t, store, &outcomes)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tx/abc123", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body["value"] != "9000" {
		t.Errorf("payload field missing: %v", body)
	}
	if body["chainId"] != float64(42) {
		t.Errorf("chainId = %v", body["chainId"])
	}
	if len(outcomes) != 1 || outcomes[0] != "hit" {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestGetTx_NotFoundEnvelope(t *testing.T) {
	var outcomes []string
	srv := newServer(t, fakeLookup{}, &outcomes)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tx/deadbeef", http.NoBody))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var env apihttp.Error
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad envelope: %v", err)
	}
	if env.Kind != apihttp.KindNotFound {
		t.Errorf("kind = %q", env.Kind)
	}
	if len(outcomes) != 1 || outcomes[0] != "miss" {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestGetTx_StoreErrorIsInternal(t *testing.T) {
	srv := newServer(t, fakeLookup{err: xerrors.New("connection reset")}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tx/abc123", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var env apihttp.Error
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad envelope: %v", err)
	}
	if env.Kind != apihttp.KindInternal {
		t.Errorf("kind = %q", env.Kind)
	}
}
