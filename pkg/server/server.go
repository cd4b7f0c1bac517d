// Package server wires the packstore components together: storage engine,
// index manager, synchronizer, entry repository, relay channel and HTTP API.
package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/packstore/packstore/pkg/api"
	"github.com/packstore/packstore/pkg/config"
	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/entries"
	"github.com/packstore/packstore/pkg/index"
	"github.com/packstore/packstore/pkg/metrics"
	"github.com/packstore/packstore/pkg/relay"
	"github.com/packstore/packstore/pkg/storage"
	mongostore "github.com/packstore/packstore/pkg/storage/mongo"
)

// Server holds references to the wired components.
type Server struct {
	cfg    *config.Config
	router *mux.Router

	engine     domain.Engine
	fileEngine *storage.StorageEngine
	mongo      *mongostore.Engine
	repo       *entries.Repository
	relay      *relay.Channel
	nats       *relay.NATSBroadcaster
}

// NewServer builds a fully wired server from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, router: mux.NewRouter()}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	switch cfg.Engine {
	case "mongo":
		eng, err := mongostore.NewEngine(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("server: connecting mongo engine: %w", err)
		}
		s.mongo = eng
		s.engine = eng
		log.Printf("INFO: Using mongo engine at %s", cfg.MongoURI)
	default:
		options := []storage.StorageOption{
			storage.WithDataDir(cfg.DataDir),
			storage.WithMaxMemory(cfg.MaxMemoryMB),
		}
		if cfg.BackgroundSave {
			options = append(options, storage.WithBackgroundSave(5*time.Minute))
		}
		eng := storage.NewStorageEngine(options...)
		s.fileEngine = eng
		s.engine = eng
		log.Printf("INFO: Using file engine in %s", cfg.DataDir)
	}

	localActor := cfg.LocalActor()
	manager := index.NewManager(s.engine, m)
	synchronizer := index.NewSynchronizer(s.engine, manager, localActor, cfg.DefaultThumb, m)
	s.engine.RegisterObserver(synchronizer)

	s.repo = entries.NewRepository(s.engine, manager, entries.Config{
		DefaultPack:  cfg.DefaultPack,
		DefaultThumb: cfg.DefaultThumb,
		LockedPacks:  cfg.LockedPacks,
		LocalActor:   localActor,
	}, m)

	if cfg.NATSURL != "" {
		nats, err := relay.NewNATSBroadcaster(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		s.nats = nats
		ch, err := relay.NewChannel(nats, localActor, cfg.RosterActors, m)
		if err != nil {
			nats.Close()
			return nil, err
		}
		if cfg.ProxyTimeout > 0 {
			ch.SetTimeout(cfg.ProxyTimeout)
		}
		s.relay = ch
		s.repo.AttachRelay(ch)
		log.Printf("INFO: Relay channel attached via NATS at %s", cfg.NATSURL)
	}

	handler := api.NewHandler(s.repo)
	handler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.router.Use(requestLoggerMiddleware)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("WARN: No route found for %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	})

	return s, nil
}

// requestLoggerMiddleware logs the method, URL path, and duration for each request.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)
		log.Printf("INFO: Request %s %s took %s", r.Method, r.URL.Path, elapsed)
	})
}

// InitDB loads persisted state and ensures every configured managed pack
// exists with a metadata record.
func (s *Server) InitDB() {
	if s.fileEngine != nil {
		if err := s.fileEngine.LoadCollectionMetadata(s.cfg.DataFile); err != nil {
			log.Printf("ERROR: Could not load collection metadata from file %s: %v", s.cfg.DataFile, err)
		} else {
			log.Printf("INFO: Loaded collection metadata from file %s successfully", s.cfg.DataFile)
		}
		s.fileEngine.StartBackgroundWorkers()
	}

	actor := s.cfg.LocalActor()
	for _, pack := range s.cfg.ManagedPacks {
		if err := s.repo.EnsureManaged(pack, actor); err != nil {
			log.Printf("ERROR: Could not initialize managed pack '%s': %v", pack, err)
		} else {
			log.Printf("INFO: Managed pack '%s' ready", pack)
		}
	}
}

// SaveDB persists the current state for the file engine.
func (s *Server) SaveDB() {
	if s.fileEngine == nil {
		return
	}
	if err := s.fileEngine.SaveToFile(s.cfg.DataFile); err != nil {
		log.Printf("ERROR: Could not save collections to file %s: %v", s.cfg.DataFile, err)
	} else {
		log.Printf("INFO: Saved collections to file %s successfully", s.cfg.DataFile)
	}
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops background workers, drains observers and closes external
// connections.
func (s *Server) Shutdown() {
	if s.relay != nil {
		s.relay.Close()
	}
	if s.nats != nil {
		s.nats.Close()
	}
	s.engine.WaitForObservers()
	if s.fileEngine != nil {
		s.fileEngine.StopBackgroundWorkers()
	}
	if s.mongo != nil {
		s.mongo.Close()
	}
}
