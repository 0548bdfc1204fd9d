package protocol

import "strings"

// LogMessage is the body of the "log" event.
type LogMessage struct {
	LogLevel string
	Name     string
	Message  string
}

// LogLevelPrefix returns the short tag used when printing a server log
// entry of the given level.
func LogLevelPrefix(level string) string {
	switch level {
	case "TRACE":
		return "trce"
	case "DEBUG":
		return "dbug"
	case "INFORMATION":
		return "info"
	case "WARNING":
		return "warn"
	case "ERROR":
		return "fail"
	case "CRITICAL":
		return "crit"
	}
	return strings.ToLower(level)
}

// ErrorMessage is the body of the "Error" event.
type ErrorMessage struct {
	Text     string
	FileName string
	Line     int
	Column   int
}

// PackageRestoreMessage is the body of the package restore events.
type PackageRestoreMessage struct {
	FileName  string
	Succeeded bool
}

// PackageDependency names an unresolved package.
type PackageDependency struct {
	Name    string
	Version string
}

// UnresolvedDependenciesMessage is the body of the
// "UnresolvedDependencies" event.
type UnresolvedDependenciesMessage struct {
	FileName               string
	UnresolvedDependencies []PackageDependency
}

// MSBuildDiagnosticsMessage is one MSBuild warning or error.
type MSBuildDiagnosticsMessage struct {
	LogLevel    string
	FileName    string
	Text        string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// MSBuildProjectDiagnostics is the body of the
// "MsBuildProjectDiagnostics" event.
type MSBuildProjectDiagnostics struct {
	FileName string
	Warnings []MSBuildDiagnosticsMessage
	Errors   []MSBuildDiagnosticsMessage
}

// MSBuildProject describes a project loaded by the server.
type MSBuildProject struct {
	ProjectGuid     string
	Path            string
	AssemblyName    string
	TargetPath      string
	TargetFramework string
	SourceFiles     []string
}

// ProjectInformation is the body of the project added, changed and
// removed events.
type ProjectInformation struct {
	MsBuildProject *MSBuildProject `json:",omitempty"`
}

// TestMessage is the body of the "TestMessage" event.
type TestMessage struct {
	MessageLevel string
	Message      string
}

// FileChangeType tells the server how a file changed.
type FileChangeType string

const (
	FileChanged FileChangeType = "Change"
	FileCreated FileChangeType = "Create"
	FileDeleted FileChangeType = "Delete"
)

// FileChange is one entry of the /filesChanged request.
type FileChange struct {
	FileName   string
	ChangeType FileChangeType
}
