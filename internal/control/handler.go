package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jf994/miro-behavior/internal/transport"
)

// Command represents a control plane command
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// CommandCallbacks contains callback functions for commands
type CommandCallbacks struct {
	OnGetStatus func() map[string]interface{}
	OnSetMood   func(mood string) error
	OnGetMoods  func() []string
	OnShutdown  func() error
}

// Options configures the handler topics
type Options struct {
	Topic         string
	ResponseTopic string
	QoS           byte
	// ShutdownDelay lets the shutdown response leave before the callback
	// runs (default 500ms).
	ShutdownDelay time.Duration
}

// Handler handles control plane commands
type Handler struct {
	bus      transport.Bus
	opts     Options
	commands chan Command

	mu        sync.Mutex
	started   bool
	callbacks CommandCallbacks
	wg        sync.WaitGroup
}

// NewHandler creates a new control plane handler
func NewHandler(bus transport.Bus, opts Options, callbacks CommandCallbacks) *Handler {
	if opts.ShutdownDelay == 0 {
		opts.ShutdownDelay = 500 * time.Millisecond
	}
	return &Handler{
		bus:       bus,
		opts:      opts,
		commands:  make(chan Command, 10),
		callbacks: callbacks,
	}
}

// Start starts listening for control commands
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return fmt.Errorf("control handler already started")
	}

	slog.Info("subscribing to control plane", "topic", h.opts.Topic, "qos", h.opts.QoS)

	if err := h.bus.Subscribe(h.opts.Topic, h.opts.QoS, h.messageHandler); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}
	h.started = true

	slog.Info("control plane handler started", "response_topic", h.opts.ResponseTopic)

	// Process commands
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.processCommands(ctx)
	}()

	return nil
}

// Stop stops the control plane handler
func (h *Handler) Stop() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = false
	h.mu.Unlock()

	if err := h.bus.Unsubscribe(h.opts.Topic); err != nil {
		slog.Warn("control plane unsubscribe failed", "error", err)
	}

	close(h.commands)
	h.wg.Wait()

	slog.Info("control plane handler stopped")
	return nil
}

// messageHandler is called when a control message is received
func (h *Handler) messageHandler(payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		slog.Error("failed to parse control command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control command received", "command", cmd.Command)

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return
	}

	// Send to processing channel
	select {
	case h.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "command", cmd.Command)
	}
}

// processCommands processes commands from the queue
func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.commands:
			if !ok {
				return
			}
			h.handleCommand(cmd)
		}
	}
}

// handleCommand executes a command
func (h *Handler) handleCommand(cmd Command) {
	var resp Response
	resp.CommandAck = cmd.Command

	switch cmd.Command {
	case "get_status":
		if h.callbacks.OnGetStatus != nil {
			resp.Status = "success"
			resp.Data = h.callbacks.OnGetStatus()
		} else {
			resp.Status = "error"
			resp.Error = "get_status not implemented"
		}

	case "get_moods":
		if h.callbacks.OnGetMoods != nil {
			resp.Status = "success"
			resp.Data = map[string]interface{}{
				"moods": h.callbacks.OnGetMoods(),
			}
		} else {
			resp.Status = "error"
			resp.Error = "get_moods not implemented"
		}

	case "set_mood":
		if h.callbacks.OnSetMood != nil {
			mood, ok := cmd.Params["mood"].(string)
			if !ok {
				resp.Status = "error"
				resp.Error = "missing or invalid 'mood' parameter (expected string: good/sad/sleep)"
			} else if err := h.callbacks.OnSetMood(mood); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
			} else {
				resp.Status = "success"
				resp.Data = map[string]interface{}{
					"mood":    mood,
					"message": "mood switched on next tick",
				}
			}
		} else {
			resp.Status = "error"
			resp.Error = "set_mood not implemented"
		}

	case "shutdown":
		if h.callbacks.OnShutdown != nil {
			slog.Warn("shutdown command received via control plane")
			resp.Status = "success"
			resp.Data = map[string]interface{}{
				"shutdown_initiated": true,
				"message":            "graceful shutdown in progress, safe pose follows",
			}
			// Send response BEFORE triggering shutdown
			h.sendResponse(resp)

			go func() {
				time.Sleep(h.opts.ShutdownDelay)
				if err := h.callbacks.OnShutdown(); err != nil {
					slog.Error("shutdown callback failed", "error", err)
				}
			}()
			return
		}
		resp.Status = "error"
		resp.Error = "shutdown not implemented"

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	h.sendResponse(resp)
}

// sendResponse publishes a response on the response topic
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)
		return
	}

	if err := h.bus.Publish(h.opts.ResponseTopic, payload, h.opts.QoS); err != nil {
		slog.Error("failed to publish response", "error", err)
		return
	}

	slog.Debug("response sent", "command_ack", resp.CommandAck, "status", resp.Status)
}
