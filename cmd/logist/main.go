package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"
	"github.com/nats-io/nats.go"

	"github.com/8gahwyud/test-logggists-sub000/internal/backend"
	"github.com/8gahwyud/test-logggists-sub000/internal/bridge"
	"github.com/8gahwyud/test-logggists-sub000/internal/logist"
	"github.com/8gahwyud/test-logggists-sub000/internal/realtime"
	"github.com/8gahwyud/test-logggists-sub000/internal/storage"
)

const (
	appNamespace = "LOGIST"
	appName      = "logist"
	appVersion   = "0.1.0"

	// fallbackUserID is the fixed identity used outside the host app.
	fallbackUserID = 1
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	storagePath := config.GetStringOrDef("storage.path", "data/logist.json")
	store, err := storage.Open(storagePath)
	if err != nil {
		log.Fatalf("%s(%s) cannot open local storage: %v", appName, appVersion, err)
	}

	backendURL, _ := config.GetString("backend.url")
	backendToken, _ := config.GetString("backend.token")
	client := backend.NewClient(backendURL, backendToken, logger)
	da := logist.NewDataAccess(client)

	engine := logist.NewEngine(logist.EngineDeps{
		DataAccess: da,
		Prefs:      store,
	}, logger)

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")
	conn, err := nats.Connect(natsURL)
	if err != nil {
		// Realtime is latency, not correctness: the pollers still converge.
		logger.Error("cannot connect to NATS, realtime disabled", "error", err)
	}

	var manager *realtime.Manager
	if conn != nil {
		manager = realtime.NewManager(conn, engine, logger)
		engine.SetRebinder(manager)
	}

	telegramToken, _ := config.GetString("telegram.token")
	platformUser, _ := strconv.ParseInt(config.GetStringOrDef("telegram.user_id", "0"), 10, 64)
	platformBridge, err := bridge.New(telegramToken, platformUser, fallbackUserID, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot initialize platform bridge: %v", appName, appVersion, err)
	}

	broadcaster := logist.NewBroadcaster(logger)
	broadcaster.Bind(engine)

	sseHandler := logist.NewSSEHandler(broadcaster, logger)
	handler := logist.NewHandler(engine, sseHandler, config, logger)
	pollers := logist.NewPollers(engine, logger)

	if err := engine.Startup(ctx, platformBridge.UserID()); err != nil {
		// The webview shows the retry screen and hits POST /startup; the
		// service keeps running.
		logger.Error("startup failed, waiting for retry", "error", err)
		platformBridge.Alert("Logist console could not reach the backend, please retry")
	} else if platformBridge.Available() {
		chatID := platformBridge.UserID()
		if name, err := platformBridge.UserDisplay(chatID, chatID); err == nil {
			logger.Info("platform user resolved", "display_name", name)
		}
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: false,
	})

	lifecycles := []interface{}{
		pollers,
		apt.LifecycleHooks{
			OnStop: func(context.Context) error {
				if manager != nil {
					_ = manager.Close()
				}
				if conn != nil {
					conn.Close()
				}
				return store.Close()
			},
		},
	}

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
