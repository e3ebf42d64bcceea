// Package id generates identifiers for local and hosted projects.
//
// Local project keys are prefixed ULIDs, so they sort by creation time and
// stay readable in logs. Hosted ids are twelve alphanumeric characters cut
// from a random UUID, matching the permalink format served at /{id}.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ProjectKey identifies a project in the local store
type ProjectKey string

// RequestID identifies an API request
type RequestID string

// RunID identifies a sandbox run
type RunID string

const (
	ProjectPrefix = "proj"
	RequestPrefix = "req"
	RunPrefix     = "run"
)

// HostedIDLength is the length of a hosted project id.
const HostedIDLength = 12

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator returns a generator over monotonic entropy. Keys minted in
// the same millisecond still sort in creation order.
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0), now: time.Now}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewProjectKey generates a new local project key
func NewProjectKey() ProjectKey {
	return ProjectKey(Default().GenerateWithPrefix(ProjectPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewRunID generates a new sandbox run ID
func NewRunID() RunID {
	return RunID(Default().GenerateWithPrefix(RunPrefix))
}

func (id ProjectKey) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }
func (id RunID) String() string      { return string(id) }

// NewHostedID returns a fresh twelve character hosted project id.
func NewHostedID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:HostedIDLength]
}
