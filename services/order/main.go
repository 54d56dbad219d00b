package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/appetiteclub/tableside/pkg"
	"github.com/appetiteclub/tableside/pkg/event"
	"github.com/appetiteclub/tableside/pkg/pricing"
	"github.com/appetiteclub/tableside/services/order/internal/mongo"
	"github.com/appetiteclub/tableside/services/order/internal/order"
)

const (
	appNamespace = "ORDER"
	appName      = "order"
	appVersion   = "0.1.0"
)

type closingPublisher interface {
	events.Publisher
	Close() error
}

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := aqm.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	seedCtx, cancelSeeds := context.WithCancel(ctx)
	defer cancelSeeds()

	baseRepo := mongo.NewBaseRepo(config, logger)
	err = baseRepo.Start(ctx)
	if err != nil {
		log.Fatalf("%s(%s) cannot start base repository: %v", appName, appVersion, err)
	}

	db := baseRepo.GetDatabase()
	if db == nil {
		log.Fatalf("%s(%s) cannot initialize repository database: %v", appName, appVersion, errors.New("repository database is nil"))
	}

	orderRepo := mongo.NewOrderRepo(db)
	if err := orderRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("%s(%s) cannot create order indexes: %v", appName, appVersion, err)
	}

	taxRate, _ := config.GetString("pricing.tax.rate")
	engine, err := pricing.ParseRate(taxRate)
	if err != nil {
		log.Fatalf("%s(%s) cannot setup pricing: %v", appName, appVersion, err)
	}

	pub, err := newPublisher(ctx, config)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
	}

	publisherLifecycle := aqm.LifecycleHooks{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	}

	hd := order.HandlerDeps{
		OrderRepo: orderRepo,
		Pricing:   engine,
		Publisher: pub,
	}

	handler := order.NewHandler(hd, config, logger)

	demoEnabled, _ := config.GetString("seeding.demo")
	var seedHooks aqm.LifecycleHooks
	if demoEnabled == "true" {
		logger.Info("Demo seeding enabled for order service")
		seedHooks = aqm.LifecycleHooks{
			OnStart: order.DemoSeedingFunc(seedCtx, orderRepo, engine, db, logger),
			OnStop: func(context.Context) error {
				cancelSeeds()
				return nil
			},
		}
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	lifecycles := []interface{}{
		aqm.LifecycleHooks{OnStop: baseRepo.Stop},
		publisherLifecycle,
	}
	if demoEnabled == "true" {
		lifecycles = append(lifecycles, seedHooks)
	}

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s) with tax rate %s", appName, appVersion, engine.TaxRate.String())

	err = ms.Run(ctx)
	if err != nil {
		_ = baseRepo.Stop(context.Background())
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}

// newPublisher retains events in JetStream when enabled so they can be
// replayed, and falls back to core NATS otherwise.
func newPublisher(ctx context.Context, config *aqm.Config) (closingPublisher, error) {
	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")

	streamEnabled, _ := config.GetString("nats.stream.enabled")
	if streamEnabled != "true" {
		return pkg.NewNATSPublisher(natsURL, appName)
	}

	return pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
		URL:        natsURL,
		Name:       appName,
		StreamName: event.OrderEventsStream,
		Subjects:   []string{event.OrderTablesTopic + ".>"},
		MaxAge:     24 * time.Hour,
	})
}
