// Package ws streams sandbox console output over a WebSocket.
//
// Protocol (JSON frames, see types.WSMessage):
//
//	client -> server: {"type":"run","buffers":{...}} | {"type":"clear"} | {"type":"ping"}
//	server -> client: system, start, console, clear, complete, pong, error
//
// A new run replaces the one in flight: its context is cancelled and any
// event it still posts is dropped.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/domain/compositor"
	"github.com/GriffinCanCode/livepen/internal/domain/console"
	"github.com/GriffinCanCode/livepen/internal/domain/library"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/providers/sandbox"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by the CORS layer
	},
}

// Runner executes composed documents.
type Runner interface {
	Run(ctx context.Context, document string, sink sandbox.Sink) (*sandbox.Result, error)
}

// Options configures the handler.
type Options struct {
	Runner    Runner
	Libraries *library.Catalog
	Timeout   time.Duration
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// Handler manages WebSocket connections
type Handler struct {
	runner    Runner
	libraries *library.Catalog
	timeout   time.Duration
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Libraries == nil {
		opts.Libraries = library.Builtin()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = sandbox.DefaultConfig().Timeout
	}
	return &Handler{
		runner:    opts.Runner,
		libraries: opts.Libraries,
		timeout:   opts.Timeout,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// session is one connection. Writes are serialized by mu.
type session struct {
	h    *Handler
	conn *websocket.Conn
	mu   sync.Mutex

	console *console.Aggregator

	runMu  sync.Mutex
	gen    int
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(int64(2 * utils.MaxProjectSize))

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	s := &session{h: h, conn: conn, console: console.New(nil, h.metrics)}
	unsubscribe := s.console.Subscribe(s.forward)
	defer func() {
		s.stop()
		unsubscribe()
	}()

	s.send(types.WSMessage{Type: "system", Message: "Connected to LivePen console stream"})

	for {
		var msg types.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "run":
			s.run(msg.Buffers)
		case "clear":
			s.console.Clear()
		case "ping":
			s.send(types.WSMessage{Type: "pong"})
		default:
			s.sendError("unknown message type")
		}
	}
}

// forward relays console updates to the client.
func (s *session) forward(u console.Update) {
	if u.Cleared {
		s.send(types.WSMessage{Type: "clear"})
		return
	}
	s.send(types.WSMessage{Type: "console", Kind: string(u.Line.Kind), Text: u.Line.Text, Seq: u.Line.Seq})
}

func (s *session) run(buffers *types.BufferSet) {
	if s.h.runner == nil {
		s.sendError("sandbox is disabled")
		return
	}
	if buffers == nil {
		s.sendError("run requires buffers")
		return
	}
	b := *buffers
	b.Library = s.h.libraries.Resolve(b.Library)
	if b.Size() > utils.MaxProjectSize {
		s.sendError("project exceeds maximum size")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.h.timeout)
	s.runMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.runMu.Unlock()

	runID := id.NewRunID().String()
	s.console.Clear()
	s.send(types.WSMessage{Type: "start", Seq: gen, RunID: runID})

	doc := compositor.Compose(b, compositor.Live)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				s.h.logger.Error("Console stream run panicked", zap.String("run_id", runID), zap.Any("panic", p))
				if s.current(gen) {
					s.send(types.WSMessage{Type: "complete", Seq: gen, RunID: runID, Message: "run failed"})
				}
			}
		}()

		_, err := s.h.runner.Run(ctx, doc, func(ev bridge.Event) {
			if s.current(gen) {
				s.console.OnEvent(ev)
			}
		})
		if !s.current(gen) {
			s.h.logger.Debug("Console stream run superseded", zap.String("run_id", runID))
			return
		}
		done := types.WSMessage{Type: "complete", Seq: gen, RunID: runID}
		switch {
		case err == nil:
		case errors.Is(err, sandbox.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			done.Message = "timeout"
		default:
			s.h.logger.Warn("Console stream run failed", zap.String("run_id", runID), zap.Error(err))
			done.Message = "run failed"
		}
		s.send(done)
	}()
}

func (s *session) current(gen int) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.gen == gen
}

// stop cancels the run in flight and waits for it to return.
func (s *session) stop() {
	s.runMu.Lock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	s.runMu.Unlock()
	s.wg.Wait()
}

func (s *session) send(msg types.WSMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h.metrics.RecordWSMessage("out", msg.Type)
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

func (s *session) sendError(message string) error {
	return s.send(types.WSMessage{Type: "error", Message: message})
}
