// Package txstore is the gateway's one read path into the transaction
// datastore. The store is owned and written by an external ingestion
// process; this package only looks records up.
package txstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/keithlinneman/chaingate/internal/log"
	"github.com/keithlinneman/chaingate/internal/xerrors"
)

const lookupTransaction = `SELECT hash, chain_id, data
	FROM transactions
	WHERE hash = $1 OR hash = $2
	LIMIT 1;`

// Transaction is a stored record: an opaque JSON payload plus the chain it
// belongs to.
type Transaction struct {
	Hash    string
	ChainID int64
	Data    json.RawMessage
}

// Merged returns the payload with chainId folded in, which is the shape the
// API serves. A payload that is not a JSON object is preserved under "data".
func (t Transaction) Merged() map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(t.Data, &payload); err != nil || payload == nil {
		payload = map[string]any{"data": t.Data}
	}
	payload["chainId"] = t.ChainID
	return payload
}

type Store struct {
	db     *sql.DB
	logger log.Logger
}

// New wraps an existing connection, used by tests.
func New(db *sql.DB, logger log.Logger) *Store {
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{db: db, logger: logger}
}

// Open connects to PostgreSQL via the pgx stdlib driver and pings it.
func Open(ctx context.Context, dsn string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Nop()
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, xerrors.Wrap(err, "open database")
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(4)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, xerrors.Wrap(err, "ping database")
	}

	logger.Info(ctx, "connected to transaction store")
	return New(conn, logger), nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping is used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Lookup finds the record whose stored hash equals the input in its
// fully-lowercased or fully-uppercased form. Only those two canonical
// casings exist in the store, so a mixed-case input can never name a
// record and short-circuits to not-found. Absence is a result, not an
// error.
func (s *Store) Lookup(ctx context.Context, hash string) (Transaction, bool, error) {
	lower := strings.ToLower(hash)
	upper := strings.ToUpper(hash)
	if hash != lower && hash != upper {
		return Transaction{}, false, nil
	}

	var tx Transaction
	row := s.db.QueryRowContext(ctx, lookupTransaction, lower, upper)
	if err := row.Scan(&tx.Hash, &tx.ChainID, &tx.Data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, false, nil
		}
		s.logger.Error(ctx, err, "transaction lookup failed", "hash", lower)
		return Transaction{}, false, xerrors.Wrap(err, "lookup transaction")
	}

	return tx, true, nil
}
