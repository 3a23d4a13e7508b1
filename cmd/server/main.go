// Package main implements the adaptor's server entry point: it loads
// configuration, wires the identifier codec, feed pusher, document server,
// batch authorization endpoint, scheduler, and minimal operator dashboard
// around a connector-supplied repository.Repository, and runs them under
// internal/lifecycle until an OS signal requests shutdown.
//
// cmd/exampleadaptor shows the Repository side of this wiring against a
// local filesystem tree; this file is the framework side every connector
// author links against.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aras-services/gsa-adaptor/config"
	"github.com/aras-services/gsa-adaptor/internal/acl"
	"github.com/aras-services/gsa-adaptor/internal/adminstore"
	"github.com/aras-services/gsa-adaptor/internal/authzserver"
	authmiddleware "github.com/aras-services/gsa-adaptor/internal/middleware"
	"github.com/aras-services/gsa-adaptor/internal/dashboard"
	"github.com/aras-services/gsa-adaptor/internal/docserver"
	"github.com/aras-services/gsa-adaptor/internal/exampleadaptor"
	"github.com/aras-services/gsa-adaptor/internal/feed"
	"github.com/aras-services/gsa-adaptor/internal/idcodec"
	"github.com/aras-services/gsa-adaptor/internal/lifecycle"
	"github.com/aras-services/gsa-adaptor/internal/pusher"
	"github.com/aras-services/gsa-adaptor/internal/repository"
	"github.com/aras-services/gsa-adaptor/internal/scheduler"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func printVersion() {
	fmt.Printf("gsa-adaptor version %s\n", version)
	if buildTime != "unknown" {
		fmt.Printf("Build Time: %s\n", buildTime)
	}
	if gitCommit != "unknown" {
		fmt.Printf("Git Commit: %s\n", gitCommit)
	}
	os.Exit(0)
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			printVersion()
		}
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	codec, err := idcodec.New(cfg.GetFeedURL(), cfg.DocId.IsUrl)
	if err != nil {
		logger.Fatal("failed to build identifier codec", zap.Error(err))
	}

	// PHASE 1: connector repository. cmd/exampleadaptor's filesystem-backed
	// repository stands in for a connector author's own implementation; a
	// real deployment would import its own package here instead.
	repo := exampleadaptor.NewRepository(exampleadaptor.Config{
		RootDir: envOr("ADAPTOR_ROOT_DIR", "."),
	}, logger)

	// PHASE 2: feed plane (pusher).
	registry := prometheus.NewRegistry()
	journal := pusher.NewJournal(registry)
	submitter := feed.NewSubmitter(nil, cfg.GetFeedURL(), cfg.Feed.Gzip)
	p := pusher.New(submitter, journal, logger, pusher.Config{
		FeedName: cfg.Feed.Name,
		MaxUrls:  cfg.Feed.MaxUrls,
	})

	// PHASE 3: trusted-peer set for docserver/authzserver. The appliance
	// itself is trusted by default (server.autoAddGSAAsTrustedPeer);
	// additional trusted peers come from server.trustedPeers.
	trusted := map[string]bool{}
	for _, peer := range cfg.Server.TrustedPeers {
		trusted[peer] = true
	}
	if cfg.Server.AutoAddGSAAsTrust {
		trusted[cfg.GSA.Hostname] = true
	}
	public := map[string]bool{}
	for _, id := range cfg.Server.MarkDocsPublic {
		public[id] = true
	}

	docSrv := docserver.New(codec, repo, logger, docserver.Options{
		TrustedPeers:   trusted,
		PublicDocIds:   public,
		MaxWorkers:     cfg.Server.MaxWorkerThreads,
		QueueCapacity:  cfg.Server.QueueCapacity,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	// PHASE 4: batch authorization. AclRepository is an optional repository
	// capability; a repository without an independent ACL store (ACLs
	// always inlined on push) has nothing to serve here.
	var authzHandler http.Handler
	if aclRepo, ok := any(repo).(acl.BatchRetriever); ok {
		batch := acl.NewBatch(aclRepo, logger)
		authzHandler = authzserver.New(codec, batch, logger)
	}

	// PHASE 5: router for the doc/authz surface.
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Handle("/doc/*", docSrv)
	r.Handle("/heartbeat/*", docSrv.HeartbeatHandler())
	if authzHandler != nil {
		r.Post("/authz", authzHandler.ServeHTTP)
	}

	mainServer := &http.Server{Addr: cfg.GetServerAddr(), Handler: r}

	// PHASE 6: dashboard (optional: only wired when a database is reachable).
	var dashboardServer *http.Server
	db, dbErr := pgxpool.New(context.Background(), cfg.GetDSN())
	if dbErr != nil {
		logger.Warn("dashboard disabled: failed to connect to admin database", zap.Error(dbErr))
	} else {
		accounts := adminstore.New(db)
		jwtSecret := []byte(cfg.Admin.Password)
		if len(jwtSecret) == 0 {
			jwtSecret = []byte(cfg.GSA.Hostname)
		}
		dash := dashboard.New(accounts, journal, jwtSecret, logger)

		dr := chi.NewRouter()
		dr.Use(middleware.Recoverer)
		dr.Use(authmiddleware.NewCORSMiddleware(cfg.Server.DashboardOrigins))
		dr.Post("/login", dash.HandleLogin)
		dr.Group(func(dr chi.Router) {
			dr.Use(dash.RequireSession)
			dr.Post("/rpc", dash.HandleRPC)
		})
		dashboardServer = &http.Server{Addr: cfg.GetDashboardAddr(), Handler: dr}
	}

	var servers []*http.Server
	servers = append(servers, mainServer)
	if dashboardServer != nil {
		servers = append(servers, dashboardServer)
	}

	// ServiceStart/ServiceStop install lc as the process-wide singleton a
	// Windows-service-style control manager would drive through static
	// entry points; a plain POSIX daemon (this binary) calls them directly
	// from main instead of from a service manager callback.
	lc := lifecycle.New(logger, repo, servers...)
	ctx, cancelStartup := context.WithCancel(context.Background())
	if err := lifecycle.ServiceStart(ctx, lc); err != nil {
		cancelStartup()
		logger.Fatal("failed to start", zap.Error(err))
	}
	cancelStartup()

	// PHASE 7: scheduler, wired against PushDocIds/PushModifiedDocIds once
	// the repository is live.
	sched := scheduler.New(logger)
	if err := sched.ScheduleFullPush(cfg.Adaptor.FullListingSchedule, func(ctx context.Context) {
		if err := p.PushDocIds(ctx, func(ctx context.Context, q *pusher.Queue) error {
			return repo.GetDocIds(ctx, q)
		}, nil); err != nil {
			logger.Error("scheduled full push failed", zap.Error(err))
		}
	}); err != nil {
		logger.Error("failed to schedule full push", zap.Error(err))
	}
	if cfg.Adaptor.IncrementalSchedule != "" {
		var checkpoint []byte
		if err := sched.ScheduleIncremental(cfg.Adaptor.IncrementalSchedule, func(ctx context.Context) {
			next, err := p.PushModifiedDocIds(ctx, checkpoint, func(ctx context.Context, cp []byte, q *pusher.Queue) ([]byte, error) {
				nextCp, err := repo.GetModifiedDocIds(ctx, repository.Checkpoint(cp), q)
				return []byte(nextCp), err
			}, nil)
			if err != nil {
				if err == pusher.ErrPushInProgress || errors.Is(err, repository.ErrIncrementalUnsupported) {
					return
				}
				logger.Error("scheduled incremental push failed", zap.Error(err))
				return
			}
			checkpoint = next
		}); err != nil {
			logger.Error("failed to schedule incremental push", zap.Error(err))
		}
	}
	sched.Start()

	logger.Info("gsa-adaptor started",
		zap.String("docAddr", cfg.GetServerAddr()),
		zap.String("feedURL", cfg.GetFeedURL()))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	sched.Stop()

	shutdownCtx := context.Background()
	if err := lifecycle.ServiceStop(shutdownCtx, cfg.Server.ShutdownGrace); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if db != nil {
		db.Close()
	}
	logger.Info("gsa-adaptor stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
