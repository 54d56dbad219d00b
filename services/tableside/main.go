package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aquamarinepk/aqm"
	aqmmw "github.com/aquamarinepk/aqm/middleware"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/appetiteclub/tableside/pkg/cart"
	"github.com/appetiteclub/tableside/pkg/checkout"
	"github.com/appetiteclub/tableside/pkg/orderapi"
	"github.com/appetiteclub/tableside/pkg/pricing"
	"github.com/appetiteclub/tableside/pkg/realtime"
	"github.com/appetiteclub/tableside/pkg/tracking"
	"github.com/appetiteclub/tableside/services/tableside/internal/tableside"
)

const (
	appNamespace = "TABLESIDE"
	appName      = "tableside"
	appVersion   = "0.1.0"
)

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("Cannot setup %s(%s): %v", appName, appVersion, err)
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

	settings, err := tableside.LoadSettings(config)
	if err != nil {
		log.Fatalf("%s(%s) invalid configuration: %v", appName, appVersion, err)
	}

	engine, err := pricing.ParseRate(settings.TaxRate)
	if err != nil {
		log.Fatalf("%s(%s) cannot setup pricing: %v", appName, appVersion, err)
	}

	var lifecycles []interface{}

	var persister cart.Persister = cart.NewMemoryPersister()
	if settings.Redis.Addr != "" {
		client := cart.NewRedisClient(settings.Redis)
		persister = cart.NewRedisPersister(client, settings.Redis.TTL, logger)
		lifecycles = append(lifecycles, aqm.LifecycleHooks{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
		logger.Info("carts persisted in Redis", "addr", settings.Redis.Addr)
	} else {
		logger.Info("no cache.redis.addr configured, carts kept in memory")
	}

	carts := cart.NewStore(persister, engine, logger)

	orderClient, err := orderapi.New(settings.OrderURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot create order client: %v", appName, appVersion, err)
	}

	checkoutService := checkout.NewService(carts, orderClient, logger)

	dialer := realtime.NewNATSDialer(settings.NATSURL, appName, logger)
	sessions := func() tableside.Session {
		return realtime.NewChannel(dialer,
			realtime.WithLogger(logger),
			realtime.WithMaxAttempts(settings.ReconnectAttempts),
		)
	}

	board := tracking.NewBoard(orderClient, logger)
	feed := tableside.NewAdminFeed(board, sessions(), settings.PollInterval, logger)
	lifecycles = append(lifecycles, aqm.LifecycleHooks{
		OnStart: feed.Start,
		OnStop:  feed.Stop,
	})

	hd := tableside.HandlerDeps{
		Carts:        carts,
		Checkout:     checkoutService,
		Orders:       orderClient,
		Sessions:     sessions,
		Board:        board,
		PollInterval: settings.PollInterval,
	}

	handler := tableside.NewHandler(hd, config, logger)

	stack := aqmmw.DefaultStack(aqmmw.StackOptions{
		Logger: logger,
	})
	stack = append(stack, chimw.NoCache)

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped with error: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
