package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fhs/omnisharp-client/internal/omnisharp/config"
	"github.com/fhs/omnisharp-client/internal/omnisharp/proxy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const mainDoc = `The program O sends requests to the OmniSharp server run by
omnisharp-proxy.

	Usage: O [flags] <sub-command> [args...]

List of sub-commands:

	events [names...]
		Print server events as they arrive. Without names, print
		errors, project changes, package restores, diagnostics and
		server state changes.

	req <command> [json]
		Send an OmniSharp request (e.g. /typelookup) and print the
		response body. The request arguments are read from standard
		input when json is not given.

	restart [solution-or-folder]
		Restart the server, on a new launch target if given.

	state
		Print the server state and launch target.

	version
		Print the protocol version spoken by omnisharp-proxy.
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
	if err := cfg.ParseFlags(config.ProxyFlags, flag.CommandLine, os.Args[1:]); err != nil {
		logrus.Fatalf("failed to parse flags: %v", err)
	}
	if cfg.ShowConfig {
		config.Write(os.Stdout, cfg)
		os.Exit(0)
	}
	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if flag.NArg() < 1 {
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, flag.Args(), os.Stdin, os.Stdout)
	if err == errUsage {
		usage()
	}
	if err != nil {
		logrus.Fatalf("%v", err)
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader, stdout io.Writer) error {
	var onEvent func(*proxy.EventParams)
	if args[0] == "events" {
		onEvent = func(ev *proxy.EventParams) {
			printEvent(stdout, ev)
		}
	}
	c, err := proxy.Dial(ctx, cfg.ProxyNetwork, cfg.ProxyAddress, onEvent)
	if err != nil {
		return err
	}
	defer c.Close()

	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "%v\n", proxy.Version)
		return nil

	case "state":
		st, err := c.State(ctx)
		if err != nil {
			return err
		}
		if st.Target == "" {
			fmt.Fprintf(stdout, "%v\n", st.State)
		} else {
			fmt.Fprintf(stdout, "%v\t%v\n", st.State, st.Target)
		}
		return nil

	case "restart":
		var target string
		switch len(args) {
		case 1:
		case 2:
			target, err = filepath.Abs(args[1])
			if err != nil {
				return err
			}
		default:
			return errUsage
		}
		return c.Restart(ctx, target)

	case "req":
		if len(args) < 2 || len(args) > 3 {
			return errUsage
		}
		var data []byte
		if len(args) == 3 {
			data = []byte(args[2])
		} else {
			data, err = io.ReadAll(stdin)
			if err != nil {
				return errors.Wrap(err, "failed to read request arguments")
			}
		}
		data = bytes.TrimSpace(data)
		if len(data) > 0 && !json.Valid(data) {
			return errors.Errorf("request arguments are not valid JSON")
		}
		body, err := c.Request(ctx, args[1], json.RawMessage(data))
		if err != nil {
			return err
		}
		return printJSON(stdout, body)

	case "events":
		if err := c.Subscribe(ctx, args[1:]); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case <-c.DisconnectNotify():
		}
		return nil
	}
	return errors.Errorf("unknown command %q", args[0])
}

func printEvent(w io.Writer, ev *proxy.EventParams) {
	if len(ev.Body) == 0 {
		fmt.Fprintf(w, "%v\n", ev.Event)
		return
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, ev.Body); err != nil {
		buf.Reset()
		buf.Write(ev.Body)
	}
	fmt.Fprintf(w, "%v\t%s\n", ev.Event, buf.Bytes())
}

func printJSON(w io.Writer, body json.RawMessage) error {
	if len(body) == 0 || string(body) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "\t"); err != nil {
		return errors.Wrap(err, "invalid response body")
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
