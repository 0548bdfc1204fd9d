package config

import (
	"bytes"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.toml")
	data := `
Command = ["mono", "/opt/omnisharp/OmniSharp.exe"]
LoggingLevel = "verbose"
ProjectLoadTimeout = 120
ExtraArgs = ["RoslynExtensionsOptions:EnableAnalyzersSupport=true"]
LogFile = "/tmp/omnisharp.log"
`
	if err := os.WriteFile(filename, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(filename)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	def := Default()
	want := def.File
	want.Command = []string{"mono", "/opt/omnisharp/OmniSharp.exe"}
	want.LoggingLevel = LogVerbose
	want.ProjectLoadTimeout = 120
	want.ExtraArgs = []string{"RoslynExtensionsOptions:EnableAnalyzersSupport=true"}
	want.LogFile = "/tmp/omnisharp.log"
	if diff := cmp.Diff(want, cfg.File); diff != "" {
		t.Errorf("loaded config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	for _, data := range []string{
		`LoggingLevel = "loud"`,
		`Command = `,
	} {
		filename := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(filename, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFile(filename); err == nil {
			t.Errorf("LoadFile of %q succeeded", data)
		}
	}
}

func TestParseFlags(t *testing.T) {
	cfg := Default()
	f := flag.NewFlagSet("omnisharp-proxy", flag.ContinueOnError)
	f.SetOutput(io.Discard)
	err := cfg.ParseFlags(ServerFlags|ProxyFlags, f, []string{
		"-v",
		"-cmd", `mono "/opt/Omni Sharp/OmniSharp.exe"`,
		"-loglevel", "verbose",
		"-timeout", "5",
		"-concurrency", "4",
		"-proxy.addr", "/tmp/os.rpc",
		"App.sln",
	})
	if err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if !cfg.Verbose {
		t.Errorf("-v not set")
	}
	if diff := cmp.Diff([]string{"mono", "/opt/Omni Sharp/OmniSharp.exe"}, cfg.Command); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}
	if cfg.ProxyAddress != "/tmp/os.rpc" {
		t.Errorf("proxy address is %q", cfg.ProxyAddress)
	}
	if diff := cmp.Diff([]string{"App.sln"}, f.Args()); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}

	opts := cfg.ServerOptions()
	if !opts.Verbose {
		t.Errorf("verbose logging level not passed to server")
	}
	if opts.ProjectLoadTimeout != 5*time.Second {
		t.Errorf("project load timeout is %v; want 5s", opts.ProjectLoadTimeout)
	}
	if opts.Concurrency != 4 {
		t.Errorf("concurrency is %v; want 4", opts.Concurrency)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	for _, args := range [][]string{
		{"-cmd", `OmniSharp "unterminated`},
		{"-loglevel", "loud"},
	} {
		f := flag.NewFlagSet("omnisharp-proxy", flag.ContinueOnError)
		f.SetOutput(io.Discard)
		if err := Default().ParseFlags(ServerFlags, f, args); err == nil {
			t.Errorf("ParseFlags(%q) succeeded", args)
		}
	}
}

func TestProxyFlagsOnly(t *testing.T) {
	f := flag.NewFlagSet("O", flag.ContinueOnError)
	f.SetOutput(io.Discard)
	if err := Default().ParseFlags(ProxyFlags, f, []string{"-cmd", "OmniSharp"}); err == nil {
		t.Errorf("server flag accepted by O")
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Default()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()
	for _, s := range []string{`ProxyNetwork = "unix"`, `LoggingLevel = "information"`} {
		if !strings.Contains(out, s) {
			t.Errorf("output does not contain %q:\n%s", s, out)
		}
	}
}
