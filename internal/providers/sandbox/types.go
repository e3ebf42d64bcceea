package sandbox

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox execution timeout exceeded")
)

// Config defines sandbox limits.
type Config struct {
	Timeout          time.Duration // wall-clock budget for a whole run
	MaxTasks         int           // timer callbacks executed before the run is cut short
	MaxCallStackSize int
}

// DefaultConfig returns the limits used by the server.
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxTasks:         1000,
		MaxCallStackSize: 1024,
	}
}

// Sink receives bridge events as they are posted.
type Sink func(bridge.Event)

// LogEntry is a call to the page's native console.
type LogEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Dialog is a call that reached a blocking dialog primitive.
type Dialog struct {
	Kind    string `json:"kind"` // alert, confirm or prompt
	Message string `json:"message"`
}

// ScriptError is an uncaught exception raised by page code.
type ScriptError struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// Result holds everything observed during a run.
type Result struct {
	Events         []bridge.Event `json:"events"`
	Messages       []any          `json:"-"`
	Console        []LogEntry     `json:"console"`
	DialogsInvoked []Dialog       `json:"dialogs"`
	Errors         []ScriptError  `json:"errors"`
	External       []string       `json:"external"`
	Body           string         `json:"body"`
	Scripts        int            `json:"scripts"`
	Tasks          int            `json:"tasks"`
	Truncated      bool           `json:"truncated"`
	VirtualTime    time.Duration  `json:"virtualTime"`
	Duration       time.Duration  `json:"duration"`
}
