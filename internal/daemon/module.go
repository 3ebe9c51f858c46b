package daemon

import (
	"context"

	"github.com/mkravets/vox/internal/api"
	"github.com/mkravets/vox/internal/bus"
	"github.com/mkravets/vox/internal/call"
	"github.com/mkravets/vox/internal/chat"
	"github.com/mkravets/vox/internal/config"
	"github.com/mkravets/vox/internal/lock"
	"github.com/mkravets/vox/internal/logging"
	"github.com/mkravets/vox/internal/media"
	"github.com/mkravets/vox/internal/session"
	"github.com/mkravets/vox/internal/signal"
	"github.com/mkravets/vox/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideLock,
			provideStore,
			provideMemStore,
			provideDispatcher,
			provideChannel,
			provideConnManager,
			provideRinger,
			provideMediaProvider,
			provideCallMachine,
			provideReconciler,
			provideRecorder,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	logger.Info("config loaded", zap.String("server", cfg.Server.URL), zap.Int64("user_id", cfg.Server.UserID))
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideMemStore() *chat.MemStore {
	return chat.NewMemStore()
}

func provideDispatcher() *Dispatcher {
	return NewDispatcher()
}

func provideChannel(cfg *config.Config, d *Dispatcher, logger *zap.Logger) *signal.Channel {
	return signal.NewChannel(cfg.Server.URL, cfg.Server.Token, d.Handle, logger)
}

func provideConnManager(ch *signal.Channel, b *bus.Bus, logger *zap.Logger) *signal.Manager {
	return signal.NewManager(ch, b, logger)
}

func provideRinger(b *bus.Bus) *call.BusRinger {
	return call.NewBusRinger(b)
}

func provideMediaProvider(logger *zap.Logger) *media.LoopbackProvider {
	return media.NewLoopbackProvider(logger)
}

func provideCallMachine(cfg *config.Config, ch *signal.Channel, provider *media.LoopbackProvider, ringer *call.BusRinger, db *store.DB, b *bus.Bus, logger *zap.Logger) *call.Machine {
	gate := media.StaticGate{
		Microphone: cfg.Media.AllowMicrophone,
		Camera:     cfg.Media.AllowCamera,
	}
	mediaCfg := call.MediaConfig{
		ServerURL: cfg.Media.URL,
		Token:     cfg.Media.Token,
	}
	return call.NewMachine(cfg.Server.UserID, ch, provider, mediaCfg, gate, ringer, &store.Lookup{DB: db}, b, logger)
}

func provideReconciler(cfg *config.Config, mem *chat.MemStore, ch *signal.Channel, db *store.DB, b *bus.Bus, logger *zap.Logger) *chat.Reconciler {
	archive := &store.Archive{DB: db, LocalUserID: cfg.Server.UserID, Log: logger}
	return chat.NewReconciler(cfg.Server.UserID, mem, archive, ch, chat.BusNotifier{Bus: b}, b, logger)
}

func provideRecorder(db *store.DB, b *bus.Bus, logger *zap.Logger) *store.Recorder {
	return store.NewRecorder(db, b, logger)
}

func provideServer(p Params, cfg *config.Config, conn *signal.Manager, machine *call.Machine, rec *chat.Reconciler, mem *chat.MemStore, db *store.DB, logger *zap.Logger) (*api.Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}
	return api.NewServer(p.SessionName, socketPath, cfg.Server.UserID, conn, machine, rec, mem, db, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *api.Server, lk *lock.Lock, d *Dispatcher, conn *signal.Manager, machine *call.Machine, rec *chat.Reconciler, recorder *store.Recorder, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			d.Bind(machine, rec)
			recorder.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()

			conn.Connect()
			conn.StartLivenessPoll()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			conn.StopLivenessPoll()
			conn.Disconnect()
			recorder.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
