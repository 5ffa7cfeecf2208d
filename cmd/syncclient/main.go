// Command syncclient is a minimal driver that wires a transport.HTTPTransport
// to a sync3.Engine and logs every emitted event. It exists to exercise the
// engine end to end, not as a user-facing Matrix client.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/matrix-org/sliding-sync-client/config"
	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/matrix-org/sliding-sync-client/sync3/extensions"
	"github.com/matrix-org/sliding-sync-client/transport"
)

var flagConfigPath = flag.String("config", "syncclient.yaml", "Path to the client's YAML configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*flagConfigPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	internal.ConfigureLogging(cfg.LogLevel)

	ht := transport.NewHTTPTransport(cfg.AccessToken)
	engineCfg := cfg.EngineConfig()
	engineCfg.Transport = ht
	engine := sync3.NewEngine(engineCfg)

	registerExtensions(engine, cfg.Extensions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		engine.Start(gCtx)
		return nil
	})
	g.Go(func() error {
		return drainEvents(gCtx, engine)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("syncclient exited with error")
		engine.Stop()
		os.Exit(1)
	}
	engine.Stop()
}

func registerExtensions(engine *sync3.Engine, opts config.ExtensionOptions) {
	mustRegister := func(ext sync3.Extension) {
		if err := engine.RegisterExtension(ext); err != nil {
			logrus.WithError(err).WithField("extension", ext.Name()).Fatal("failed to register extension")
		}
	}
	mustRegister(&extensions.ToDevice{Enabled: opts.ToDevice.Enabled, Limit: opts.ToDevice.Limit})
	mustRegister(&extensions.AccountData{Enabled: opts.AccountData.Enabled, Lists: opts.AccountData.Lists, Rooms: opts.AccountData.Rooms})
	mustRegister(&extensions.Typing{Enabled: opts.Typing.Enabled})
	mustRegister(&extensions.E2EE{Enabled: opts.E2EE.Enabled})
}

// drainEvents logs every event the engine emits until ctx is cancelled or
// the engine's channels are closed (Stop was called).
func drainEvents(ctx context.Context, engine *sync3.Engine) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-engine.LifecycleCh:
			if !ok {
				return nil
			}
			logLifecycle(ev)
		case ev, ok := <-engine.RoomDataCh:
			if !ok {
				return nil
			}
			logrus.WithField("room_id", ev.RoomID).Debug("[SYNC_CLIENT] room data")
		case ev, ok := <-engine.ListCh:
			if !ok {
				return nil
			}
			logrus.WithFields(logrus.Fields{
				"list_index":   ev.Index,
				"joined_count": ev.JoinedCount,
			}).Info("[SYNC_CLIENT] list updated")
		case ev, ok := <-engine.ExtensionCh:
			if !ok {
				return nil
			}
			logrus.WithField("extension", ev.Name).Debug("[SYNC_CLIENT] extension payload")
		}
	}
}

func logLifecycle(ev sync3.LifecycleEvent) {
	fields := logrus.Fields{"state": ev.State.String()}
	if ev.Err != nil {
		logrus.WithFields(fields).WithError(ev.Err).Warn("[SYNC_CLIENT] lifecycle error")
		return
	}
	logrus.WithFields(fields).Debug("[SYNC_CLIENT] lifecycle")
}
