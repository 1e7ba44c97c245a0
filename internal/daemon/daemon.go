// Package daemon assembles the Signalbox process: the store, the intake
// pipeline, the lifecycle sweeper, the digest scheduler and the HTTP
// server, all driven from one configuration.
package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/zulandar/signalbox/internal/command"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/digest"
	"github.com/zulandar/signalbox/internal/identity"
	"github.com/zulandar/signalbox/internal/intake"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/lifecycle"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/policy"
	"github.com/zulandar/signalbox/internal/reply"
	"github.com/zulandar/signalbox/internal/server"
	"github.com/zulandar/signalbox/internal/store"
	"gorm.io/gorm"
)

// Opts holds parameters for creating a Daemon.
type Opts struct {
	DB         *gorm.DB
	Config     *config.Config
	Notifier   notify.Notifier   // defaults to a Dispatcher using the configured timeout
	Classifier intent.Classifier // defaults to the configured command or endpoint
	Location   *time.Location    // defaults to time.Local
	Out        io.Writer         // defaults to os.Stdout
}

// Daemon owns every long-running component.
type Daemon struct {
	cfg      *config.Config
	out      io.Writer
	store    *store.Store
	pipeline *intake.Pipeline
	sweeper  *lifecycle.Sweeper
	digest   *digest.Scheduler
	server   *server.Server
}

// New wires all components from opts.
func New(opts Opts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("daemon: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("daemon: config is required")
	}
	cfg := opts.Config
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewDispatcher(cfg.NotifyTimeout())
	}
	if opts.Classifier == nil {
		opts.Classifier = NewClassifier(cfg.Classifier)
	}

	st := store.New(opts.DB)
	ids := identity.New(cfg.Identity)

	watcher, err := reply.NewWatcher(reply.WatcherOpts{
		Store:          st,
		Notifier:       opts.Notifier,
		AlertWebhook:   cfg.Notify.AlertWebhook,
		DefaultTimeout: time.Duration(cfg.Monitor.ReplyTimeoutMin) * time.Minute,
		Out:            opts.Out,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	scanner, err := policy.NewScanner(policy.ScannerOpts{
		Store:        st,
		Notifier:     opts.Notifier,
		AlertWebhook: cfg.Notify.AlertWebhook,
		Out:          opts.Out,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	router, err := command.NewRouter(command.RouterOpts{
		Store:      st,
		Classifier: opts.Classifier,
		Location:   opts.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	pipeline, err := intake.NewPipeline(intake.PipelineOpts{
		Store:      st,
		Identity:   ids,
		Reconciler: reply.NewReconciler(st, opts.Out),
		Scanner:    scanner,
		Router:     router,
		Notifier:   opts.Notifier,
		BotName:    cfg.Identity.BotName,
		AutoRemind: cfg.AutoRemindDefault(),
		Out:        opts.Out,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	sweeper, err := lifecycle.NewSweeper(lifecycle.SweeperOpts{
		Store:       st,
		Notifier:    opts.Notifier,
		Watcher:     watcher,
		Interval:    cfg.CheckInterval(),
		FallbackAge: cfg.EscalationAge(),
		Concurrency: cfg.Notify.MaxConcurrency,
		Location:    opts.Location,
		Out:         opts.Out,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	sched, err := digest.NewScheduler(digest.SchedulerOpts{
		Store:    st,
		Notifier: opts.Notifier,
		Spec:     cfg.Digest.Cron,
		Location: opts.Location,
		Out:      opts.Out,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	srv, err := server.New(server.Opts{
		Store:    st,
		Pipeline: pipeline,
		Pusher:   sweeper,
		Port:     cfg.Server.Port,
		Location: opts.Location,
		Out:      opts.Out,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	return &Daemon{
		cfg:      cfg,
		out:      opts.Out,
		store:    st,
		pipeline: pipeline,
		sweeper:  sweeper,
		digest:   sched,
		server:   srv,
	}, nil
}

// NewClassifier builds the intent classifier named by the config. With
// neither command nor endpoint set, every command gets the fallback reply.
func NewClassifier(cfg config.ClassifierConfig) intent.Classifier {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	switch {
	case len(cfg.Command) > 0:
		return &intent.CommandClassifier{Argv: cfg.Command, Timeout: timeout}
	case cfg.Endpoint != "":
		return &intent.HTTPClassifier{Endpoint: cfg.Endpoint, Client: &http.Client{Timeout: timeout}}
	default:
		return intent.Unavailable{}
	}
}

// Store returns the conversation store.
func (d *Daemon) Store() *store.Store { return d.store }

// Pipeline returns the intake pipeline.
func (d *Daemon) Pipeline() *intake.Pipeline { return d.pipeline }

// Sweeper returns the lifecycle sweeper.
func (d *Daemon) Sweeper() *lifecycle.Sweeper { return d.sweeper }

// Digest returns the digest scheduler.
func (d *Daemon) Digest() *digest.Scheduler { return d.digest }

// Handler returns the HTTP handler.
func (d *Daemon) Handler() http.Handler { return d.server.Handler() }

// Run starts the sweeper, the digest schedule and the HTTP server, and
// blocks until ctx is cancelled or the server fails. Background work is
// stopped before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	fmt.Fprintf(d.out, "Lifecycle sweep every %s\n", d.cfg.CheckInterval())
	defer func() {
		d.sweeper.Stop()
		fmt.Fprintf(d.out, "Lifecycle sweeper stopped.\n")
	}()

	if d.cfg.DigestEnabled() {
		d.digest.Start()
		fmt.Fprintf(d.out, "Daily digest scheduled (%s), next at %s\n", d.cfg.Digest.Cron, d.digest.Next().Format(time.RFC3339))
		defer func() {
			d.digest.Stop()
			fmt.Fprintf(d.out, "Digest scheduler stopped.\n")
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.server.Run(ctx) }()

	select {
	case <-ctx.Done():
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
