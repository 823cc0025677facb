// Package service exposes the automation bridge as MCP tools: one tool per
// operation, each returning a structured result or a typed failure. The
// package owns per-session state (the bridge, the stream manager and the
// audit log) and stays a thin orchestration layer; all automation semantics
// live in the acad and stream packages.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"

	"github.com/acadmcp/acadmcp/acad"
	"github.com/acadmcp/acadmcp/stream"
)

const (
	defaultTimeoutSec      = 10.0
	defaultPollIntervalSec = 0.1
	defaultMaxBytes        = 65536
	tailBytes              = 8192
)

// Service holds one server session: a single resolved endpoint, its streams
// and the audit trail.
type Service struct {
	sessionID string
	bridge    *acad.Bridge
	streams   *stream.Manager
	audit     *AuditLog
	fs        afs.Service
}

// New builds a session Service using the platform connector.
func New(ctx context.Context, options *Options) (*Service, error) {
	connector, err := acad.NewConnector(ctx)
	if err != nil {
		return nil, err
	}
	return NewWithConnector(options, connector)
}

// NewWithConnector builds a session Service over an explicit connector;
// tests use it to substitute the automation layer.
func NewWithConnector(options *Options, connector acad.Connector) (*Service, error) {
	sessionID := uuid.New().String()
	sessionDir := filepath.Join(options.baseLogDir(), sessionID)
	audit, err := NewAuditLog(filepath.Join(sessionDir, "session.jsonl"), sessionID)
	if err != nil {
		return nil, err
	}
	bridge := acad.NewBridge(options.acadConfig(), connector)
	return &Service{
		sessionID: sessionID,
		bridge:    bridge,
		streams:   stream.NewManager(bridge),
		audit:     audit,
		fs:        afs.New(),
	}, nil
}

// SessionID returns the session identifier.
func (s *Service) SessionID() string {
	return s.sessionID
}

// StreamInfo summarizes one stream in tool results.
type StreamInfo struct {
	StreamID    string `json:"stream_id"`
	Mode        string `json:"mode"`
	LogfilePath string `json:"logfile_path,omitempty"`
	Cursor      int64  `json:"cursor"`
}

func streamInfo(s *stream.Stream) *StreamInfo {
	if s == nil {
		return nil
	}
	return &StreamInfo{
		StreamID:    s.ID,
		Mode:        string(s.Mode),
		LogfilePath: s.Path,
		Cursor:      s.Cursor(),
	}
}

// StatusResult reports endpoint identity and the session default stream.
type StatusResult struct {
	TS            string      `json:"ts"`
	SessionID     string      `json:"session_id"`
	Connected     bool        `json:"connected"`
	Dwg           string      `json:"dwg,omitempty"`
	AcadVer       string      `json:"acadver,omitempty"`
	AcadHwnd      int         `json:"acad_hwnd,omitempty"`
	AcadPid       int         `json:"acad_pid,omitempty"`
	DefaultStream *StreamInfo `json:"default_stream,omitempty"`
}

// Status implements the get_status tool.
func (s *Service) Status(ctx context.Context) *StatusResult {
	status := s.bridge.Status(ctx)
	return &StatusResult{
		TS:            ISONow(),
		SessionID:     s.sessionID,
		Connected:     status.Connected,
		Dwg:           status.DocLabel,
		AcadVer:       status.Version,
		AcadHwnd:      status.WindowID,
		AcadPid:       status.PID,
		DefaultStream: streamInfo(s.streams.Default()),
	}
}

// SendCommandInput carries one dispatch request.
type SendCommandInput struct {
	Command         string   `json:"command"`
	Wait            *bool    `json:"wait,omitempty"`
	TimeoutSec      *float64 `json:"timeout_sec,omitempty"`
	PollIntervalSec *float64 `json:"poll_interval_sec,omitempty"`
}

// LogBlock is the default stream output attached to a command response.
type LogBlock struct {
	StreamID  string `json:"stream_id"`
	Cursor    int64  `json:"cursor"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

// SendCommandResult reports one dispatch. TimedOut means the idle wait
// expired, not that the send failed; the command may still be executing and
// its state is unknown.
type SendCommandResult struct {
	CommandID  string    `json:"command_id"`
	Dwg        string    `json:"dwg,omitempty"`
	Sent       string    `json:"sent"`
	Completed  bool      `json:"completed"`
	NeedsInput bool      `json:"needs_input"`
	TimedOut   bool      `json:"timed_out"`
	LastPrompt string    `json:"last_prompt"`
	Log        *LogBlock `json:"log,omitempty"`
	MarkerID   string    `json:"marker_id,omitempty"`
}

func secondsOr(value *float64, fallback float64) time.Duration {
	seconds := fallback
	if value != nil {
		seconds = *value
	}
	return time.Duration(seconds * float64(time.Second))
}

// SendCommand implements the send_command tool.
func (s *Service) SendCommand(ctx context.Context, input *SendCommandInput) (*SendCommandResult, error) {
	dwg := s.bridge.DocLabel(ctx)
	commandID, err := s.bridge.Send(ctx, input.Command)
	if err != nil {
		return nil, err
	}
	wait := input.Wait == nil || *input.Wait
	s.audit.Log("send_command", map[string]interface{}{
		"command_id": commandID, "command": input.Command, "wait": wait,
	}, dwg)

	result := &SendCommandResult{CommandID: commandID, Dwg: dwg, Sent: input.Command, Completed: true}
	if wait {
		waited := s.bridge.WaitForIdle(ctx,
			secondsOr(input.TimeoutSec, defaultTimeoutSec),
			secondsOr(input.PollIntervalSec, defaultPollIntervalSec))
		result.Completed = waited.Completed
		result.NeedsInput = waited.NeedsInput
		result.TimedOut = !waited.Completed
	}
	result.LastPrompt = s.bridge.LastPrompt(ctx)

	if defaultStream := s.streams.Default(); defaultStream != nil && defaultStream.Mode == stream.ModeLogfile {
		chunk, err := s.streams.ReadSince(ctx, defaultStream.ID, defaultStream.Cursor(), defaultMaxBytes)
		if err == nil {
			result.Log = &LogBlock{
				StreamID:  defaultStream.ID,
				Cursor:    chunk.NewCursor,
				Text:      chunk.Text,
				Truncated: chunk.Truncated,
			}
		}
	}
	s.audit.Log("send_command_result", map[string]interface{}{
		"command_id": commandID, "completed": result.Completed,
		"needs_input": result.NeedsInput, "has_log": result.Log != nil,
	}, dwg)
	return result, nil
}

// StartLoggingInput selects the stream mode and transcript placement.
type StartLoggingInput struct {
	Mode        string `json:"mode,omitempty"`
	LogfilePath string `json:"logfile_path,omitempty"`
	Reset       bool   `json:"reset,omitempty"`
}

// StartLoggingResult describes the created stream.
type StartLoggingResult struct {
	StreamID    string `json:"stream_id"`
	Mode        string `json:"mode"`
	LogfilePath string `json:"logfile_path,omitempty"`
	Cursor      int64  `json:"cursor"`
}

// StartLogging implements the start_logging tool.
func (s *Service) StartLogging(ctx context.Context, input *StartLoggingInput) (*StartLoggingResult, error) {
	mode := stream.Mode(input.Mode)
	if input.Mode == "" {
		mode = stream.ModeLogfile
	}
	tracked, err := s.streams.Start(ctx, mode, input.LogfilePath, input.Reset)
	if err != nil {
		return nil, err
	}
	s.audit.Log("start_logging", map[string]interface{}{
		"mode": string(tracked.Mode), "logfile_path": tracked.Path, "cursor": tracked.Cursor(),
	}, s.bridge.DocLabel(ctx))
	return &StartLoggingResult{
		StreamID:    tracked.ID,
		Mode:        string(tracked.Mode),
		LogfilePath: tracked.Path,
		Cursor:      tracked.Cursor(),
	}, nil
}

// StopLoggingInput names the stream to tear down.
type StopLoggingInput struct {
	StreamID string `json:"stream_id"`
}

// StopLoggingResult reports whether the stream existed.
type StopLoggingResult struct {
	StreamID string `json:"stream_id"`
	Stopped  bool   `json:"stopped"`
}

// StopLogging implements the stop_logging tool; teardown is best-effort.
func (s *Service) StopLogging(ctx context.Context, input *StopLoggingInput) (*StopLoggingResult, error) {
	stopped := s.streams.Stop(ctx, input.StreamID)
	s.audit.Log("stop_logging", map[string]interface{}{
		"stream_id": input.StreamID, "stopped": stopped,
	}, s.bridge.DocLabel(ctx))
	return &StopLoggingResult{StreamID: input.StreamID, Stopped: stopped}, nil
}

// ReadOutputInput is a cursor-tracked incremental read request.
type ReadOutputInput struct {
	StreamID string `json:"stream_id"`
	Cursor   int64  `json:"cursor"`
	MaxBytes int    `json:"max_bytes,omitempty"`
}

// ReadOutputResult carries new output since the given cursor.
type ReadOutputResult struct {
	Dwg       string `json:"dwg,omitempty"`
	Text      string `json:"text"`
	NewCursor int64  `json:"new_cursor"`
	Truncated bool   `json:"truncated"`
}

// ReadOutput implements the get_new_output_since tool.
func (s *Service) ReadOutput(ctx context.Context, input *ReadOutputInput) (*ReadOutputResult, error) {
	maxBytes := input.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	chunk, err := s.streams.ReadSince(ctx, input.StreamID, input.Cursor, maxBytes)
	if err != nil {
		return nil, err
	}
	dwg := s.bridge.DocLabel(ctx)
	s.audit.Log("get_new_output_since", map[string]interface{}{
		"stream_id": input.StreamID, "cursor": input.Cursor,
		"new_cursor": chunk.NewCursor, "bytes": len(chunk.Text),
	}, dwg)
	return &ReadOutputResult{Dwg: dwg, Text: chunk.Text, NewCursor: chunk.NewCursor, Truncated: chunk.Truncated}, nil
}

// LastOutputInput selects the source register.
type LastOutputInput struct {
	Source string `json:"source,omitempty"`
}

// LastOutputResult carries the most recent output of the chosen source.
type LastOutputResult struct {
	Dwg       string `json:"dwg,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// LastOutput implements the get_last_output tool. Source "logfile" tails the
// default stream's transcript; the default source is the last-prompt
// register.
func (s *Service) LastOutput(ctx context.Context, input *LastOutputInput) (*LastOutputResult, error) {
	dwg := s.bridge.DocLabel(ctx)
	source := input.Source
	if source == "" {
		source = "lastprompt"
	}
	var text string
	switch source {
	case "logfile":
		if defaultStream := s.streams.Default(); defaultStream != nil {
			tail, err := s.streams.ReadTail(ctx, defaultStream.ID, tailBytes)
			if err != nil {
				return nil, err
			}
			text = tail
		}
	case "lastprompt":
		text = s.bridge.LastPrompt(ctx)
	default:
		return nil, fmt.Errorf("source must be %q or %q", "lastprompt", "logfile")
	}
	s.audit.Log("get_last_output", map[string]interface{}{"source": source, "bytes": len(text)}, dwg)
	return &LastOutputResult{Dwg: dwg, Text: text, Timestamp: ISONow(), Source: source}, nil
}

// LoadLispInput names a LISP file to load.
type LoadLispInput struct {
	Path       string   `json:"path"`
	Wait       *bool    `json:"wait,omitempty"`
	TimeoutSec *float64 `json:"timeout_sec,omitempty"`
}

// LoadLispFile implements the load_lisp_file tool: it wraps the path in a
// load directive and follows the send_command contract.
func (s *Service) LoadLispFile(ctx context.Context, input *LoadLispInput) (*SendCommandResult, error) {
	if ok, _ := s.fs.Exists(ctx, input.Path); !ok {
		return nil, fmt.Errorf("lisp file not found: %v", input.Path)
	}
	command := acad.LoadCommand(input.Path)
	s.audit.Log("load_lisp_file", map[string]interface{}{"path": input.Path, "command": command}, s.bridge.DocLabel(ctx))
	return s.SendCommand(ctx, &SendCommandInput{
		Command:    command,
		Wait:       input.Wait,
		TimeoutSec: input.TimeoutSec,
	})
}

// RunLispInput carries a raw expression to evaluate.
type RunLispInput struct {
	Expr       string   `json:"expr"`
	Wait       *bool    `json:"wait,omitempty"`
	TimeoutSec *float64 `json:"timeout_sec,omitempty"`
}

// RunLisp implements the run_lisp tool: the expression is bracketed by
// marker prompts so its transcript output is unambiguously delimited.
func (s *Service) RunLisp(ctx context.Context, input *RunLispInput) (*SendCommandResult, error) {
	markerID := uuid.New().String()
	script := acad.Script(input.Expr, markerID)
	s.audit.Log("run_lisp", map[string]interface{}{"expr": input.Expr, "marker_id": markerID}, s.bridge.DocLabel(ctx))
	result, err := s.SendCommand(ctx, &SendCommandInput{
		Command:    script,
		Wait:       input.Wait,
		TimeoutSec: input.TimeoutSec,
	})
	if err != nil {
		return nil, err
	}
	result.MarkerID = markerID
	return result, nil
}

// Close releases session resources.
func (s *Service) Close() error {
	return s.audit.Close()
}
