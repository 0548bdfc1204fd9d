package queue

import (
	"sync"

	"github.com/fhs/omnisharp-client/internal/omnisharp/protocol"
)

// Tier is the concurrency and ordering class of a command.
type Tier int

const (
	Priority Tier = iota
	Normal
	Deferred
)

func (t Tier) String() string {
	switch t {
	case Priority:
		return "Priority"
	case Normal:
		return "Normal"
	case Deferred:
		return "Deferred"
	}
	return "Unknown"
}

// Commands that change or format buffers. They affect typing latency and
// preempt everything else.
var priorityCommands = []string{
	protocol.ChangeBuffer,
	protocol.FormatAfterKeystroke,
	protocol.FormatRange,
	protocol.UpdateBuffer,
}

var normalCommands = []string{
	protocol.AutoComplete,
	protocol.FilesChanged,
	protocol.FindSymbols,
	protocol.FindUsages,
	protocol.GetCodeActions,
	protocol.GoToDefinition,
	protocol.RunCodeAction,
	protocol.SignatureHelp,
	protocol.TypeLookup,
}

// Classifier assigns commands to tiers. Commands outside the priority and
// normal sets are deferred; they are remembered the first time they are
// seen. A Classifier is safe for concurrent use.
type Classifier struct {
	priority map[string]bool
	normal   map[string]bool

	mu       sync.Mutex
	deferred map[string]bool
}

// NewClassifier returns a Classifier with the standard command sets.
func NewClassifier() *Classifier {
	c := &Classifier{
		priority: make(map[string]bool),
		normal:   make(map[string]bool),
		deferred: make(map[string]bool),
	}
	for _, cmd := range priorityCommands {
		c.priority[cmd] = true
	}
	for _, cmd := range normalCommands {
		c.normal[cmd] = true
	}
	return c
}

func (c *Classifier) IsPriorityCommand(command string) bool {
	return c.priority[command]
}

func (c *Classifier) IsNormalCommand(command string) bool {
	return c.normal[command]
}

// IsDeferredCommand reports whether command is neither priority nor
// normal, recording it as deferred.
func (c *Classifier) IsDeferredCommand(command string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deferred[command] {
		return true
	}
	if c.priority[command] || c.normal[command] {
		return false
	}
	c.deferred[command] = true
	return true
}

// Classify returns the tier of command.
func (c *Classifier) Classify(command string) Tier {
	switch {
	case c.IsPriorityCommand(command):
		return Priority
	case c.IsNormalCommand(command):
		return Normal
	}
	c.IsDeferredCommand(command)
	return Deferred
}

var defaultClassifier = NewClassifier()

// IsPriorityCommand reports whether command is in the priority tier.
func IsPriorityCommand(command string) bool { return defaultClassifier.IsPriorityCommand(command) }

// IsNormalCommand reports whether command is in the normal tier.
func IsNormalCommand(command string) bool { return defaultClassifier.IsNormalCommand(command) }

// IsDeferredCommand reports whether command is in the deferred tier.
func IsDeferredCommand(command string) bool { return defaultClassifier.IsDeferredCommand(command) }

// Classify returns the tier of command.
func Classify(command string) Tier { return defaultClassifier.Classify(command) }
