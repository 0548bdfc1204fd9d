package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fhs/omnisharp-client/internal/omnisharp/config"
	"github.com/fhs/omnisharp-client/internal/omnisharp/launcher"
	"github.com/fhs/omnisharp-client/internal/omnisharp/logger"
	"github.com/fhs/omnisharp-client/internal/omnisharp/proxy"
	"github.com/fhs/omnisharp-client/internal/omnisharp/server"
	"github.com/fhs/omnisharp-client/internal/omnisharp/telemetry"
	"github.com/fhs/omnisharp-client/internal/omnisharp/watch"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const mainDoc = `The program omnisharp-proxy starts an OmniSharp server for a C#
workspace and lets the O command talk to it.

OmniSharp (https://www.omnisharp.net/) provides C# language features
like auto complete, go to definition, find all references, etc. over a
line-delimited JSON protocol on its standard input and output.
Omnisharp-proxy depends on the OmniSharp server already being installed
in the system.

Omnisharp-proxy launches the server on the solution, project or folder
given as argument. Without an argument, it looks for launch targets in
the current directory. It then listens for connections from the O
command and forwards their requests to the server, which it restarts on
demand.

	Usage: omnisharp-proxy [flags] [solution-or-folder]
`

func usage() {
	os.Stderr.Write([]byte(mainDoc))
	fmt.Fprintf(os.Stderr, "\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = usage

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration file: %v", err)
	}
	if err := cfg.ParseFlags(config.ServerFlags|config.ProxyFlags, flag.CommandLine, os.Args[1:]); err != nil {
		logrus.Fatalf("failed to parse flags: %v", err)
	}
	if cfg.ShowConfig {
		config.Write(os.Stdout, cfg)
		os.Exit(0)
	}
	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if flag.NArg() > 1 {
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0)); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, target string) error {
	out, err := logOutput(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	reg := prometheus.NewRegistry()
	pr, err := telemetry.NewPrometheusReporter(reg)
	if err != nil {
		return err
	}
	reporter := telemetry.MultiReporter{pr, &telemetry.LogReporter{Log: logrus.StandardLogger()}}

	srv := server.New(cfg.ServerOptions(), logger.New(out, ""), reporter)
	defer srv.Stop()

	srv.OnServerError(func(err error) {
		logrus.Errorf("OmniSharp server: %v", err)
	})
	srv.OnMultipleLaunchTargets(func(targets []launcher.Target) {
		fmt.Fprintf(os.Stderr, "Several launch targets found; choose one with -target:\n")
		for _, t := range targets {
			fmt.Fprintf(os.Stderr, "\t%v\t%v\n", t.Target, t.Description)
		}
	})

	root, err := start(ctx, srv, cfg, target)
	if err != nil {
		return err
	}

	ln, err := proxy.Listen(cfg.ProxyNetwork, cfg.ProxyAddress)
	if err != nil {
		return errors.Wrap(err, "could not listen for O")
	}
	logrus.Infof("listening on %v!%v", cfg.ProxyNetwork, cfg.ProxyAddress)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return proxy.Serve(ctx, ln, srv)
	})
	if cfg.WatchFiles {
		w, err := watch.New(root, srv)
		if err != nil {
			logrus.Warnf("not watching files: %v", err)
		} else {
			g.Go(func() error {
				return w.Run(ctx)
			})
		}
	}
	if cfg.MetricsAddress != "" {
		hs := &http.Server{
			Addr:    cfg.MetricsAddress,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		g.Go(func() error {
			if err := hs.ListenAndServe(); err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics server failed")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}
	return g.Wait()
}

// start launches the server and returns the directory to watch.
func start(ctx context.Context, srv *server.Server, cfg *config.Config, target string) (string, error) {
	if target == "" {
		root, err := os.Getwd()
		if err != nil {
			return "", err
		}
		if err := srv.AutoStart(ctx, root, cfg.PreferredTarget); err != nil {
			return "", err
		}
		return root, nil
	}
	t, err := launcher.TargetFromPath(target)
	if err != nil {
		return "", err
	}
	if err := srv.Start(ctx, t); err != nil {
		return "", err
	}
	return t.Directory, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func logOutput(cfg *config.Config) (io.WriteCloser, error) {
	if cfg.LogFile == "" {
		return nopCloser{os.Stderr}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open log file")
	}
	return f, nil
}
