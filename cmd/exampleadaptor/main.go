// exampleadaptor is a standalone debugging CLI for internal/exampleadaptor:
// it serves a small inspection API over a local filesystem tree so a
// connector author can sanity-check GetDocIds/GetAcls output before wiring
// the same repository.Repository into cmd/server. It is a thin front end,
// not a second production server: gorilla/mux is enough for the handful of
// fixed routes below.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aras-services/gsa-adaptor/internal/exampleadaptor"
	"github.com/aras-services/gsa-adaptor/internal/feed"
	"github.com/aras-services/gsa-adaptor/internal/repository"
)

func main() {
	root := flag.String("root", ".", "directory tree to serve")
	addr := flag.String("addr", ":8090", "address to listen on")
	defaultGroup := flag.String("default-group", "", "ACL group permitted when a directory has no resolvable owner")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	repo := exampleadaptor.NewRepository(exampleadaptor.Config{
		RootDir:      *root,
		DefaultGroup: *defaultGroup,
	}, logger)

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	r.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		handleListDocs(w, r, repo)
	}).Methods("GET")

	r.HandleFunc("/acls", func(w http.ResponseWriter, r *http.Request) {
		handleGetAcls(w, r, repo)
	}).Methods("GET")

	logger.Info("exampleadaptor listening", zap.String("addr", *addr), zap.String("root", *root))
	if err := http.ListenAndServe(*addr, r); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// docRecord is the JSON-friendly projection of feed.Record returned by
// /docs, letting a connector author eyeball what a full push would send.
type docRecord struct {
	DocId  string `json:"docId"`
	Action string `json:"action"`
	HasAcl bool   `json:"hasAcl"`
}

func handleListDocs(w http.ResponseWriter, r *http.Request, repo *exampleadaptor.Repository) {
	var out []docRecord
	sink := collectingSink(func(rec feed.Record) {
		out = append(out, docRecord{DocId: rec.DocId, Action: rec.Action.String(), HasAcl: rec.Acl != nil})
	})
	if err := repo.GetDocIds(r.Context(), sink); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func handleGetAcls(w http.ResponseWriter, r *http.Request, repo *exampleadaptor.Repository) {
	ids := r.URL.Query()["id"]
	if len(ids) == 0 {
		http.Error(w, "missing ?id= query parameter", http.StatusBadRequest)
		return
	}
	acls, err := repo.GetAcls(r.Context(), ids)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make(map[string]interface{}, len(acls))
	for id, a := range acls {
		resp[id] = map[string]interface{}{
			"permitGroups":    a.PermitGroups(),
			"denyGroups":      a.DenyGroups(),
			"inheritanceType": a.InheritanceType.Name(),
			"inheritFrom":     a.InheritFrom,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// collectingSink adapts a callback to repository.DocPusher for the listing
// endpoint, which wants every record gathered rather than batched/pushed.
type collectingSink func(feed.Record)

func (s collectingSink) PushRecord(ctx context.Context, r feed.Record) error {
	s(r)
	return nil
}

var _ repository.DocPusher = collectingSink(nil)
