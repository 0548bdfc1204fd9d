package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fhs/omnisharp-client/internal/omnisharp/protocol"
	"github.com/fhs/omnisharp-client/internal/omnisharp/server"
	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
)

type fakeRequester struct {
	changes chan protocol.FileChange

	mu       sync.Mutex
	refusals int // requests to fail with server.ErrNotStarted
}

func (r *fakeRequester) MakeRequest(ctx context.Context, command string, data interface{}) (json.RawMessage, error) {
	if command != protocol.FilesChanged {
		return nil, nil
	}
	r.mu.Lock()
	refuse := r.refusals > 0
	if refuse {
		r.refusals--
	}
	r.mu.Unlock()
	if refuse {
		return nil, server.ErrNotStarted
	}
	for _, c := range data.([]protocol.FileChange) {
		r.changes <- c
	}
	return nil, nil
}

func TestInteresting(t *testing.T) {
	for _, tc := range []struct {
		name string
		want bool
	}{
		{"/src/Program.cs", true},
		{"/src/Program.CS", true},
		{"/src/build.cake", true},
		{"/src/App.csproj", true},
		{"/src/App.sln", true},
		{"/src/Directory.Build.props", true},
		{"/src/project.json", true},
		{"/src/package.json", false},
		{"/src/README.md", false},
		{"/src/.Program.cs.swp", false},
	} {
		if got := Interesting(tc.name); got != tc.want {
			t.Errorf("Interesting(%q) = %v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestChangeType(t *testing.T) {
	for _, tc := range []struct {
		op   fsnotify.Op
		want protocol.FileChangeType
		ok   bool
	}{
		{fsnotify.Create, protocol.FileCreated, true},
		{fsnotify.Write, protocol.FileChanged, true},
		{fsnotify.Remove, protocol.FileDeleted, true},
		{fsnotify.Rename, protocol.FileDeleted, true},
		{fsnotify.Chmod, "", false},
	} {
		got, ok := changeType(tc.op)
		if got != tc.want || ok != tc.ok {
			t.Errorf("changeType(%v) = %v, %v; want %v, %v", tc.op, got, ok, tc.want, tc.ok)
		}
	}
}

func TestWatcher(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "obj"), 0755); err != nil {
		t.Fatal(err)
	}
	r := &fakeRequester{changes: make(chan protocol.FileChange, 100)}
	w, err := New(root, r)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w.Delay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	write := func(name string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, name), []byte("class C {}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("README.md")
	write(filepath.Join("obj", "Generated.cs"))
	write("Program.cs")

	select {
	case c := <-r.changes:
		want := protocol.FileChange{FileName: filepath.Join(root, "Program.cs"), ChangeType: protocol.FileCreated}
		if diff := cmp.Diff(want, c); diff != "" {
			t.Errorf("change mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no change reported")
	}

	if err := os.Mkdir(filepath.Join(root, "Models"), 0755); err != nil {
		t.Fatal(err)
	}
	model := filepath.Join(root, "Models", "Person.cs")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case c := <-r.changes:
			if c.FileName == model {
				break loop
			}
			if c.FileName != filepath.Join(root, "Program.cs") {
				t.Errorf("unexpected change %+v", c)
			}
		case <-tick.C:
			write(filepath.Join("Models", "Person.cs"))
		case <-deadline:
			t.Fatalf("change in new directory not reported")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func runWatcher(t *testing.T, root string, r *fakeRequester) {
	t.Helper()
	w, err := New(root, r)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w.Delay = 20 * time.Millisecond
	w.RetryDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func expectChange(t *testing.T, r *fakeRequester, want protocol.FileChange) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-r.changes:
			if c == want {
				return
			}
		case <-deadline:
			t.Fatalf("change %+v not reported", want)
		}
	}
}

func TestWatcherDirectoryMovedIn(t *testing.T) {
	root := t.TempDir()
	r := &fakeRequester{changes: make(chan protocol.FileChange, 100)}
	runWatcher(t, root, r)

	staging := filepath.Join(t.TempDir(), "Lib")
	if err := os.MkdirAll(filepath.Join(staging, "Models"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Lib.csproj", filepath.Join("Models", "Person.cs"), "notes.txt"} {
		if err := os.WriteFile(filepath.Join(staging, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Rename(staging, filepath.Join(root, "Lib")); err != nil {
		t.Fatal(err)
	}

	expectChange(t, r, protocol.FileChange{
		FileName:   filepath.Join(root, "Lib", "Models", "Person.cs"),
		ChangeType: protocol.FileCreated,
	})
}

func TestWatcherHoldsChangesUntilStarted(t *testing.T) {
	root := t.TempDir()
	r := &fakeRequester{changes: make(chan protocol.FileChange, 100), refusals: 2}
	runWatcher(t, root, r)

	if err := os.WriteFile(filepath.Join(root, "Program.cs"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	expectChange(t, r, protocol.FileChange{
		FileName:   filepath.Join(root, "Program.cs"),
		ChangeType: protocol.FileCreated,
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refusals != 0 {
		t.Errorf("%v refusals left; want 0", r.refusals)
	}
}
