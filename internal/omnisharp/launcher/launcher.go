// Package launcher finds the solutions, projects and scripts an OmniSharp
// server can be started on, and builds the server command line.
package launcher

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// Kind is the kind of launch target.
type Kind int

const (
	Solution Kind = iota
	ProjectJSON
	Folder
	Csx
)

func (k Kind) String() string {
	switch k {
	case Solution:
		return "Solution"
	case ProjectJSON:
		return "ProjectJson"
	case Folder:
		return "Folder"
	case Csx:
		return "Csx"
	}
	return "Unknown"
}

// Target is something the server can be started on.
type Target struct {
	Label       string
	Description string
	Directory   string // working directory of the server
	Target      string // argument to -s
	Kind        Kind
}

// MaxFiles bounds the number of candidate files FindTargets looks at.
const MaxFiles = 100

var (
	includePatterns = []string{"**/*.sln", "**/*.csproj", "**/project.json", "**/*.csx"}
	excludePatterns = []string{"**/node_modules", "**/.git", "**/bower_components"}
)

var errEnough = errors.New("enough files")

// findFiles returns at most MaxFiles files under root, relative to root,
// that match one of the include patterns.
func findFiles(root string) ([]string, error) {
	var files []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}
			if de.IsDir() {
				for _, pat := range excludePatterns {
					if ok, _ := doublestar.PathMatch(filepath.FromSlash(pat), rel); ok {
						return filepath.SkipDir
					}
				}
				return nil
			}
			for _, pat := range includePatterns {
				ok, err := doublestar.PathMatch(filepath.FromSlash(pat), rel)
				if err != nil {
					return err
				}
				if ok {
					files = append(files, rel)
					if len(files) >= MaxFiles {
						return errEnough
					}
					break
				}
			}
			return nil
		},
	})
	if err != nil && err != errEnough {
		return nil, errors.Wrapf(err, "failed to search %v", root)
	}
	return files, nil
}

// FindTargets returns the launch targets found under root, sorted by
// directory. Solutions are only offered when there are C# projects.
func FindTargets(root string) ([]Target, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "could not get absolute path of %q", root)
	}
	files, err := findFiles(root)
	if err != nil {
		return nil, err
	}
	return selectTargets(root, files), nil
}

func selectTargets(root string, files []string) []Target {
	var (
		solutions          []string
		projectJSONs       []string
		hasCsProj          bool
		hasCsx             bool
		hasProjectJSONRoot bool
	)
	for _, f := range files {
		switch name := filepath.Base(f); {
		case strings.HasSuffix(name, ".sln"):
			solutions = append(solutions, f)
		case strings.HasSuffix(name, ".csproj"):
			hasCsProj = true
		case name == "project.json":
			projectJSONs = append(projectJSONs, f)
			if filepath.Dir(f) == "." {
				hasProjectJSONRoot = true
			}
		case strings.HasSuffix(name, ".csx"):
			hasCsx = true
		}
	}

	var targets []Target
	if hasCsProj {
		for _, f := range solutions {
			path := filepath.Join(root, f)
			targets = append(targets, Target{
				Label:       filepath.Base(f),
				Description: filepath.Dir(f),
				Directory:   filepath.Dir(path),
				Target:      path,
				Kind:        Solution,
			})
		}
	}
	for _, f := range projectJSONs {
		dir := filepath.Join(root, filepath.Dir(f))
		targets = append(targets, Target{
			Label:       filepath.Base(dir),
			Description: filepath.Dir(f),
			Directory:   dir,
			Target:      dir,
			Kind:        ProjectJSON,
		})
	}
	if (hasCsProj && len(solutions) == 0) || (len(projectJSONs) > 0 && !hasProjectJSONRoot) {
		targets = append(targets, Target{
			Label:     filepath.Base(root),
			Directory: root,
			Target:    root,
			Kind:      Folder,
		})
	}
	if hasCsx {
		targets = append(targets, Target{
			Label:       "CSX",
			Description: filepath.Base(root),
			Directory:   root,
			Target:      root,
			Kind:        Csx,
		})
	}

	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Directory < targets[j].Directory
	})
	return targets
}

// TargetFromPath returns the target for an explicitly named solution file
// or directory.
func TargetFromPath(path string) (*Target, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return &Target{
			Label:     filepath.Base(path),
			Directory: path,
			Target:    path,
			Kind:      Folder,
		}, nil
	}
	return &Target{
		Label:     filepath.Base(path),
		Directory: filepath.Dir(path),
		Target:    path,
		Kind:      Solution,
	}, nil
}

// Options control the server command line.
type Options struct {
	// Command is the server executable and its leading arguments.
	// Empty means "OmniSharp" from PATH.
	Command []string

	// UseMono runs a .exe server through mono on systems other than
	// Windows.
	UseMono bool

	Verbose         bool
	WaitForDebugger bool
	ExtraArgs       []string
}

// DefaultCommand is the server command used when Options.Command is empty.
var DefaultCommand = []string{"OmniSharp"}

// Args returns the full server argv for target and host pid.
func Args(opts *Options, target *Target, pid int) []string {
	argv := opts.Command
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	var args []string
	if opts.UseMono && runtime.GOOS != "windows" && strings.HasSuffix(strings.ToLower(argv[0]), ".exe") {
		args = append(args, "mono")
	}
	args = append(args, argv...)
	args = append(args,
		"-s", target.Target,
		"--hostPID", strconv.Itoa(pid),
		"--stdio",
		"DotNet:enablePackageRestore=false",
		"--encoding", "utf-8",
	)
	if opts.Verbose {
		args = append(args, "-v")
	}
	if opts.WaitForDebugger {
		args = append(args, "--debug")
	}
	return append(args, opts.ExtraArgs...)
}

// Command returns the server command for target, to be run in the
// target's directory.
func Command(opts *Options, target *Target, pid int) *exec.Cmd {
	args := Args(opts, target, pid)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = target.Directory
	return cmd
}
