package main

import (
	"context"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coder/serpent"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"

	eventcounter "github.com/st-keller/event-counter"
	promexport "github.com/st-keller/event-counter/export/prometheus"
	"github.com/st-keller/event-counter/registry"
	"github.com/st-keller/event-counter/standard"
	"github.com/st-keller/event-counter/transport"
)

type serveFlags struct {
	address      string
	name         string
	demoInterval time.Duration
	verbose      bool
	tls          transport.TLSConfig
}

func (f *serveFlags) attach(opts *serpent.OptionSet) {
	*opts = append(*opts,
		serpent.Option{
			Flag:        "address",
			Env:         "EVENTCOUNTER_ADDRESS",
			Description: "Address the introspection surface and /metrics listen on.",
			Default:     "127.0.0.1:9464",
			Value:       serpent.StringOf(&f.address),
		},
		serpent.Option{
			Flag:        "name",
			Env:         "EVENTCOUNTER_NAME",
			Description: "Registration name of the event tracker.",
			Default:     eventcounter.DefaultName,
			Value:       serpent.StringOf(&f.name),
		},
		serpent.Option{
			Flag:        "demo-interval",
			Env:         "EVENTCOUNTER_DEMO_INTERVAL",
			Description: "Generate a synthetic error event at this interval. Zero disables.",
			Default:     "0s",
			Value:       serpent.DurationOf(&f.demoInterval),
		},
		serpent.Option{
			Flag:          "verbose",
			FlagShorthand: "v",
			Env:           "EVENTCOUNTER_VERBOSE",
			Description:   "Enable debug logging.",
			Value:         serpent.BoolOf(&f.verbose),
		},
		serpent.Option{
			Flag:        "tls-cert",
			Env:         "EVENTCOUNTER_SERVER_TLS_CERT",
			Description: "Server certificate. Setting the TLS flags serves mTLS instead of cleartext HTTP/2, /metrics included.",
			Value:       serpent.StringOf(&f.tls.CertPath),
		},
		serpent.Option{
			Flag:        "tls-key",
			Env:         "EVENTCOUNTER_SERVER_TLS_KEY",
			Description: "Server key for mTLS.",
			Value:       serpent.StringOf(&f.tls.KeyPath),
		},
		serpent.Option{
			Flag:        "tls-ca",
			Env:         "EVENTCOUNTER_SERVER_TLS_CA",
			Description: "CA certificate that client certificates must chain to.",
			Value:       serpent.StringOf(&f.tls.CAPath),
		},
	)
}

func serveCmd() *serpent.Command {
	var flags serveFlags
	cmd := &serpent.Command{
		Use:        "serve",
		Short:      "Serve event counts over HTTP/2 and Prometheus.",
		Middleware: serpent.RequireNArgs(0),
		Handler: func(inv *serpent.Invocation) error {
			ctx, stop := signal.NotifyContext(inv.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.Make(sloghuman.Sink(inv.Stderr))
			if flags.verbose {
				logger = logger.Leveled(slog.LevelDebug)
			}
			return serve(ctx, logger, flags)
		},
	}
	flags.attach(&cmd.Options)
	return cmd
}

func serve(ctx context.Context, logger slog.Logger, flags serveFlags) error {
	reg := registry.New(logger)

	tracker, err := eventcounter.New(eventcounter.Config{
		Name:     flags.name,
		Registry: reg,
		Logger:   logger,
	})
	if err != nil {
		return xerrors.Errorf("create tracker: %w", err)
	}
	if err := tracker.Init(ctx); err != nil {
		return xerrors.Errorf("init tracker: %w", err)
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			logger.Warn(ctx, "close tracker", slog.Error(err))
		}
	}()

	if err := reg.Register(ctx, standard.ServiceInfoName, standard.AutoDetect("eventcounter", version)); err != nil {
		return xerrors.Errorf("register service info: %w", err)
	}

	promReg := prometheus.NewRegistry()
	if err := promReg.Register(promexport.NewCollector(tracker, promexport.Options{})); err != nil {
		return xerrors.Errorf("register prometheus collector: %w", err)
	}

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	router.Mount("/", transport.NewHandler(reg, logger))

	srv := transport.NewServer(flags.address, router)
	srv.BaseContext = func(net.Listener) context.Context { return ctx }
	listen := srv.ListenAndServe
	if flags.tls.Enabled() {
		if err := transport.ConfigureTLS(srv, flags.tls); err != nil {
			return xerrors.Errorf("configure TLS: %w", err)
		}
		listen = func() error { return srv.ListenAndServeTLS("", "") }
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info(egCtx, "serving introspection surface",
			slog.F("address", flags.address),
			slog.F("tracker", flags.name),
			slog.F("mtls", flags.tls.Enabled()),
		)
		if err := listen(); err != nil && !xerrors.Is(err, http.ErrServerClosed) {
			return xerrors.Errorf("listen: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if flags.demoInterval > 0 {
		eg.Go(func() error {
			runDemo(egCtx, tracker, flags.demoInterval)
			return nil
		})
	}

	err = eg.Wait()
	logger.Info(ctx, "stopped")
	return err
}

// demoErrors are raised round-robin by runDemo so the surface has something
// to show.
var demoErrors = []error{
	&fs.PathError{Op: "open", Path: "/etc/missing", Err: fs.ErrNotExist},
	&net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded},
	&strconv.NumError{Func: "Atoi", Num: "x", Err: strconv.ErrSyntax},
	context.DeadlineExceeded,
}

func runDemo(ctx context.Context, tracker *eventcounter.Tracker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = tracker.NotifyError(ctx, demoErrors[i%len(demoErrors)])
		}
	}
}
