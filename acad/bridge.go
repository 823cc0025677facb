package acad

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// state of the endpoint lifecycle: Unresolved -> Attached -> (Disconnected
// -> Unresolved). All re-resolution triggers funnel through Ensure.
type state int

const (
	stateUnresolved state = iota
	stateAttached
)

// WaitResult reports the outcome of an idle wait. A timeout is not an error:
// the command was already submitted and may still be executing; Completed is
// simply false and the caller should treat the command state as unknown.
type WaitResult struct {
	Completed  bool
	NeedsInput bool
	Quiescent  bool
}

// Status is a point-in-time snapshot of the endpoint.
type Status struct {
	Connected bool
	Version   string
	WindowID  int
	PID       int
	DocLabel  string
}

// Bridge owns the session's single endpoint and serializes every automation
// call through it. The endpoint itself is not safe for uncoordinated
// concurrent calls; the mutex is held for the duration of one automation
// call, never across a poll loop.
type Bridge struct {
	mu       sync.Mutex
	resolver *Resolver
	retry    RetryPolicy
	endpoint *Endpoint
	state    state
}

// NewBridge returns a Bridge resolving endpoints via the given connector.
func NewBridge(config Config, connector Connector) *Bridge {
	return &Bridge{
		resolver: NewResolver(config, connector),
		retry:    config.Retry,
	}
}

// Ensure returns the live endpoint, resolving or re-resolving as needed.
func (b *Bridge) Ensure(ctx context.Context) (*Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureLocked(ctx)
}

func (b *Bridge) ensureLocked(ctx context.Context) (*Endpoint, error) {
	if b.state == stateAttached && b.endpoint != nil {
		if _, err := b.endpoint.Automation.DocName(); err == nil {
			return b.endpoint, nil
		}
		// Stale handle: fall through to a fresh resolve.
		b.state = stateUnresolved
		b.endpoint = nil
	}
	endpoint, err := b.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	b.endpoint = endpoint
	b.state = stateAttached
	return endpoint, nil
}

// call runs op against the live endpoint under the bridge mutex, with busy
// retries. A disconnection flips the state machine back to unresolved so the
// next call re-resolves.
func (b *Bridge) call(ctx context.Context, op func(Automation) (interface{}, error)) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	endpoint, err := b.ensureLocked(ctx)
	if err != nil {
		return nil, err
	}
	result, err := Retry(ctx, b.retry, func() (interface{}, error) {
		return op(endpoint.Automation)
	})
	if IsDisconnected(err) {
		b.state = stateUnresolved
		b.endpoint = nil
	}
	return result, err
}

// Send submits command text to the endpoint's command line, ensuring a
// trailing newline so the command actually executes. It returns a command id
// for audit correlation.
func (b *Bridge) Send(ctx context.Context, text string) (string, error) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := b.call(ctx, func(auto Automation) (interface{}, error) {
		return nil, auto.SendCommand(text)
	})
	if err != nil {
		return "", err
	}
	return uuid.New().String(), nil
}

// WaitForIdle polls the endpoint until it is quiescent with no active
// command, or until timeout elapses. The deadline is computed once up front;
// the bridge mutex is released between polls so other callers are not
// starved for the whole wait.
func (b *Bridge) WaitForIdle(ctx context.Context, timeout, pollInterval time.Duration) WaitResult {
	deadline := time.Now().Add(timeout)
	for {
		quiescent := b.isQuiescent(ctx)
		cmdActive := b.commandActive(ctx)

		if quiescent && cmdActive == 0 {
			return WaitResult{Completed: true, Quiescent: true}
		}
		if !time.Now().Before(deadline) {
			return WaitResult{NeedsInput: cmdActive != 0, Quiescent: quiescent}
		}
		select {
		case <-ctx.Done():
			return WaitResult{NeedsInput: cmdActive != 0, Quiescent: quiescent}
		case <-time.After(pollInterval):
		}
	}
}

func (b *Bridge) isQuiescent(ctx context.Context) bool {
	result, err := b.call(ctx, func(auto Automation) (interface{}, error) {
		return auto.Quiescent()
	})
	if err != nil {
		return false
	}
	quiescent, _ := result.(bool)
	return quiescent
}

// commandActive returns CMDACTIVE, or a nonzero sentinel when the variable
// cannot be read so an unreadable state is never mistaken for idle.
func (b *Bridge) commandActive(ctx context.Context) int {
	value, err := b.GetVariable(ctx, "CMDACTIVE")
	if err != nil {
		return 999
	}
	active, err := intValue(value)
	if err != nil {
		return 999
	}
	return active
}

// GetVariable reads a system variable through the retry executor.
func (b *Bridge) GetVariable(ctx context.Context, name string) (interface{}, error) {
	return b.call(ctx, func(auto Automation) (interface{}, error) {
		return auto.GetVariable(name)
	})
}

// SetVariable writes a system variable through the retry executor.
func (b *Bridge) SetVariable(ctx context.Context, name string, value interface{}) error {
	_, err := b.call(ctx, func(auto Automation) (interface{}, error) {
		return nil, auto.SetVariable(name, value)
	})
	return err
}

// LastPrompt returns the endpoint's last-prompt register, or "" when it is
// unreadable. The register has no history, only current state.
func (b *Bridge) LastPrompt(ctx context.Context) string {
	value, err := b.GetVariable(ctx, "LASTPROMPT")
	if err != nil || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// DocLabel returns the active document path (or bare name), best-effort.
func (b *Bridge) DocLabel(ctx context.Context) string {
	label, err := b.call(ctx, func(auto Automation) (interface{}, error) {
		name, err := auto.DocName()
		if err != nil {
			return nil, err
		}
		if dir, err := auto.DocPath(); err == nil && dir != "" {
			return filepath.Join(dir, name), nil
		}
		return name, nil
	})
	if err != nil {
		return ""
	}
	return fmt.Sprint(label)
}

// Status reports the current endpoint identity. Connected is false when no
// endpoint can be resolved.
func (b *Bridge) Status(ctx context.Context) Status {
	endpoint, err := b.Ensure(ctx)
	if err != nil {
		return Status{}
	}
	return Status{
		Connected: true,
		Version:   endpoint.Version,
		WindowID:  endpoint.WindowID,
		PID:       endpoint.PID,
		DocLabel:  b.DocLabel(ctx),
	}
}

func intValue(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	}
	return 0, fmt.Errorf("not an integer value: %v", value)
}
