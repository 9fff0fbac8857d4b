// Package txhttp is the route table for transaction endpoints under the
// versioned API prefix.
package txhttp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/chaingate/internal/apihttp"
	"github.com/keithlinneman/chaingate/internal/log"
	"github.com/keithlinneman/chaingate/internal/txstore"
)

// TxLookup is the narrow read path into the transaction store.
type TxLookup interface {
	Lookup(ctx context.Context, hash string) (txstore.Transaction, bool, error)
}

type API struct {
	store  TxLookup
	logger log.Logger

	// OnLookup receives "hit", "miss" or "error" for metrics.
	OnLookup func(outcome string)
}

func NewAPI(store TxLookup, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{store: store, logger: logger}
}

// RegisterRoutes attaches transaction endpoints to the API router
func (api *API) RegisterRoutes(rt *apihttp.Router) {
	rt.Get("/tx/{hash}", api.HandleGetTx)
}

// HandleGetTx serves the record payload merged with its chain id, or a
// not_found envelope.
func (api *API) HandleGetTx(w http.ResponseWriter, r *http.Request) *apihttp.Error {
	ctx := r.Context()
	hash := chi.URLParam(r, "hash")

	if hash == "" {
		api.count("error")
		return apihttp.BadRequest("missing transaction hash", "")
	}

	tx, found, err := api.store.Lookup(ctx, hash)
	if err != nil {
		api.count("error")
		return apihttp.Internal(err)
	}
	if !found {
		api.count("miss")
		return apihttp.NotFound("transaction not found")
	}

	api.count("hit")
	api.logger.Debug(ctx, "served transaction",
		"hash", tx.Hash,
		"chain_id", tx.ChainID,
	)
	apihttp.WriteJSON(w, http.StatusOK, tx.Merged())
	return nil
}

func (api *API) count(outcome string) {
	if api.OnLookup != nil {
		api.OnLookup(outcome)
	}
}
