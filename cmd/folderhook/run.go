package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aleister1102/folderhook/internal/config"
	"github.com/aleister1102/folderhook/internal/datastore"
	"github.com/aleister1102/folderhook/internal/httpclient"
	"github.com/aleister1102/folderhook/internal/monitor"
	"github.com/aleister1102/folderhook/internal/notifier"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var _ monitor.Dispatcher = (*notifier.WebhookDispatcher)(nil)
var _ monitor.Recorder = (*datastore.HistoryDB)(nil)

// shutdownGrace is added to the send timeout and settle delay when waiting for the worker.
const shutdownGrace = 5 * time.Second

var (
	runDebug       bool
	runWatchEvents bool
	runNoHistory   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start monitoring until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		gCfg, zLogger, err := loadConfig()
		if err != nil {
			return err
		}
		if runDebug {
			gCfg.WatchConfig.Debug = true
		}
		if runWatchEvents {
			gCfg.WatchConfig.WatchEvents = true
		}
		if runNoHistory {
			gCfg.HistoryConfig.Enabled = false
		}

		if err := config.ValidateConfig(gCfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runMonitor(ctx, gCfg, zLogger)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Emit a diagnostics event for every scan")
	runCmd.Flags().BoolVar(&runWatchEvents, "watch-events", false, "Use filesystem notifications to shorten the idle sleep")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record deliveries in the history database")
}

// runMonitor wires the session and blocks until ctx is cancelled and the worker has exited.
func runMonitor(ctx context.Context, gCfg *config.GlobalConfig, zLogger zerolog.Logger) error {
	httpClient, err := httpclient.NewHTTPClient(gCfg.DispatchConfig.ToHTTPClientConfig(), zLogger)
	if err != nil {
		return err
	}

	emitter := monitor.NewEmitter(monitor.DefaultEventBuffer, zLogger)
	dispatcherCfg := gCfg.DispatchConfig.ToDispatcherConfig()
	dispatcher := notifier.NewWebhookDispatcher(httpClient, dispatcherCfg, zLogger, emitter.Publish)

	var sessionOpts []monitor.SessionOption
	if gCfg.HistoryConfig.Enabled {
		db, err := datastore.NewHistoryDB(gCfg.HistoryConfig.DBPath, zLogger)
		if err != nil {
			return err
		}
		defer db.Close()
		sessionOpts = append(sessionOpts, monitor.WithRecorder(db))
	}

	session := monitor.NewSession(dispatcher, emitter, zLogger, sessionOpts...)

	sessionLogs := newSessionLoggers(gCfg.LogConfig, zLogger)
	renderer := newEventRenderer(zLogger)
	renderer.forSession = sessionLogs.get
	rendererDone := make(chan struct{})
	stopRendering := make(chan struct{})
	go func() {
		defer close(rendererDone)
		renderer.run(session.Events(), stopRendering)
	}()
	defer func() {
		close(stopRendering)
		<-rendererDone
	}()

	opts := gCfg.WatchConfig.ToSessionOptions(gCfg.DispatchConfig.Endpoints)
	if err := session.Start(ctx, opts); err != nil {
		return err
	}

	<-ctx.Done()
	zLogger.Info().Msg("Shutdown requested, stopping monitoring session")
	session.Stop()

	sendTimeout := dispatcherCfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = notifier.DefaultSendTimeout
	}
	wait := sendTimeout + opts.SettleDelay + shutdownGrace
	select {
	case <-session.Done():
	case <-time.After(wait):
		zLogger.Warn().Dur("waited", wait).Msg("Worker did not exit in time, abandoning in-flight upload")
	}

	counters := session.Counters()
	summaryLog := sessionLogs.get(session.SessionID())
	summaryLog.Info().
		Str("session_id", session.SessionID()).
		Int64("delivered", counters.Delivered).
		Int64("failed", counters.Failed).
		Int64("dropped_events", emitter.Dropped()).
		Msg("Monitoring session summary")
	return nil
}
