package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/jstrand/preflight/internal/api"
	"github.com/jstrand/preflight/internal/rpc"
)

func newApiHandler(store *metadataStore, audit *auditLog, auth rpc.Authorizer) http.Handler {
	router := httprouter.New()
	router.GET("/state", rpc.WithAuth(auth, newGetStateHandler(store)))
	router.PUT("/indices/:name", rpc.WithAuth(auth, newCreateIndexHandler(store, audit)))
	router.PUT("/templates/:name", rpc.WithAuth(auth, newPutTemplateHandler(store, audit)))
	router.GET("/audit", rpc.WithAuth(auth, newGetAuditHandler(audit)))
	return router
}

// newGetStateHandler serves the registry snapshot. Passing after=<revision>
// long-polls until the registry moves past that revision.
func newGetStateHandler(store *metadataStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		after := r.URL.Query().Get("after")
		var watcher <-chan struct{}
		for {
			if r.Context().Err() != nil {
				w.WriteHeader(400)
				return
			}

			state := store.State()
			if after == "" || strconv.FormatUint(state.Revision, 10) != after {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(state)
				return
			}

			if watcher == nil {
				ctx, done := context.WithTimeout(r.Context(), time.Minute*30)
				defer done()
				watcher = store.Watch(ctx)
			}
			if _, open := <-watcher; !open {
				w.WriteHeader(408) // long poll expired, the client will reconnect
				return
			}
		}
	}
}

func newCreateIndexHandler(store *metadataStore, audit *auditLog) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		name := ps.ByName("name")

		spec := api.IndexSpec{}
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			http.Error(w, "malformed index spec", 400)
			return
		}

		meta, err := store.CreateIndex(name, spec)
		exists := &api.AlreadyExistsError{}
		if errors.As(err, &exists) {
			http.Error(w, err.Error(), 409)
			return
		}
		if err != nil {
			http.Error(w, "internal error", 500)
			return
		}

		audit.Record(r.URL.Query().Get("fingerprint"), "create-index", name)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(201)
		json.NewEncoder(w).Encode(&meta)
	}
}

func newPutTemplateHandler(store *metadataStore, audit *auditLog) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		name := ps.ByName("name")

		spec := api.TemplateSpec{}
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			http.Error(w, "malformed template spec", 400)
			return
		}

		created, err := store.PutTemplate(name, spec)
		exists := &api.AlreadyExistsError{}
		if errors.As(err, &exists) {
			http.Error(w, err.Error(), 409)
			return
		}
		if err != nil {
			http.Error(w, "internal error", 500)
			return
		}

		audit.Record(r.URL.Query().Get("fingerprint"), "put-template", name)

		if created {
			w.WriteHeader(201)
		} else {
			w.WriteHeader(200)
		}
	}
}

func newGetAuditHandler(audit *auditLog) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(audit.Recent())
	}
}
