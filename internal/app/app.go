// Package app assembles the order service from its configuration.
package app

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/2b33rs/codevision-backend/internal/allocation"
	"github.com/2b33rs/codevision-backend/internal/config"
	"github.com/2b33rs/codevision-backend/internal/events"
	orderHttp "github.com/2b33rs/codevision-backend/internal/handler/http"
	"github.com/2b33rs/codevision-backend/internal/inventory"
	"github.com/2b33rs/codevision-backend/internal/order"
	"github.com/2b33rs/codevision-backend/internal/production"
	"github.com/2b33rs/codevision-backend/internal/status"
	"github.com/2b33rs/codevision-backend/internal/workflow"
)

// Version is set at build time.
var Version = "dev"

// SetupLogger configures the global zerolog logger: JSON on stderr, or a
// console writer when pretty output is requested.
func SetupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", cfg.Name).Logger()
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func NewPublisher(cfg config.KafkaConfig) events.Publisher {
	if len(cfg.Brokers) == 0 {
		log.Info().Msg("app: no kafka brokers configured, events are dropped")
		return events.NopPublisher{}
	}
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("app: publishing events to kafka")
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

type Services struct {
	Repository order.Repository
	Inventory  *inventory.Client
	Dispatcher *production.Dispatcher
	Engine     *allocation.Engine
	Statuses   *status.Handler
	Orders     *workflow.Service
	Catalog    *workflow.Catalog
}

// Wire builds the service graph on top of repo.
func Wire(cfg *config.Config, repo order.Repository, publisher events.Publisher) *Services {
	inv := inventory.NewClient(cfg.External.InventoryBaseURL, cfg.External.RequestTimeout)
	remote := production.NewClient(cfg.External.ProductionBaseURL, cfg.External.RequestTimeout)

	dispatcher := production.NewDispatcher(repo, remote, publisher,
		production.WithSequenceRetryAttempts(cfg.Allocation.SequenceRetryAttempts))

	var policy allocation.ReservationPolicy = allocation.NoReservation{}
	if cfg.Allocation.ReserveFinishedGoods {
		policy = allocation.FinishedGoodsReservation{Reserver: inv}
	}
	engine := allocation.NewEngine(inv, dispatcher, repo, allocation.WithReservationPolicy(policy))
	statuses := status.NewHandler(repo, publisher)

	return &Services{
		Repository: repo,
		Inventory:  inv,
		Dispatcher: dispatcher,
		Engine:     engine,
		Statuses:   statuses,
		Orders: workflow.NewService(repo, engine, dispatcher, statuses,
			workflow.WithPublisher(publisher),
			workflow.WithConcurrency(cfg.App.AllocationConcurrency)),
		Catalog: workflow.NewCatalog(repo, inv, cfg.App.AllocationConcurrency),
	}
}

// Router mounts the HTTP API with the usual chi middleware.
func (s *Services) Router() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	orderHttp.NewHandler(s.Orders, s.Statuses, s.Catalog, s.Repository).RegisterRoutes(router)
	return router
}
