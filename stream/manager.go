// Package stream tracks named output streams over the endpoint's growing
// transcript file and its single-value last-prompt register. Streams hand
// out monotonic byte cursors; incremental reads never overlap and never
// fail on decode problems (transcripts are diagnostic text, not data).
package stream

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/viant/afs"
)

// Mode selects the backing source of a stream.
type Mode string

const (
	// ModeLogfile follows the endpoint's transcript file with a byte cursor.
	ModeLogfile Mode = "logfile"
	// ModeLastPrompt exposes the last-prompt register; it has no
	// addressable history, only current state.
	ModeLastPrompt Mode = "lastprompt"
)

// Endpoint is the narrow automation surface the manager needs. Implemented
// by acad.Bridge.
type Endpoint interface {
	LogFilePath(ctx context.Context) (string, error)
	SetLogFile(ctx context.Context, path string) error
	EnableLogging(ctx context.Context) (alreadyOn bool, err error)
	DisableLogging(ctx context.Context) error
	LastPrompt(ctx context.Context) string
	CodePage(ctx context.Context) string
}

// Stream is one tracked readable output source. The cursor is non-decreasing
// for the stream's lifetime; reads on one stream are serialized by its own
// mutex so concurrent callers can never corrupt the stored cursor.
type Stream struct {
	ID   string
	Mode Mode
	// Path is the transcript file backing a logfile stream.
	Path string
	// enabledLogging records whether this stream was the one that turned
	// the endpoint's transcript feature on, as opposed to it being already
	// active externally.
	enabledLogging bool

	mu     sync.Mutex
	cursor int64
}

// Cursor returns the stream's current byte offset.
func (s *Stream) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Chunk is the result of one incremental read.
type Chunk struct {
	Text      string
	NewCursor int64
	// Truncated reports maxBytes exhaustion only, never decode state.
	Truncated bool
}

// Manager creates and tracks the session's streams. Zero-or-one stream is
// the session default: the newest started one, auto-attached to command
// responses by the tool layer.
type Manager struct {
	mu        sync.Mutex
	endpoint  Endpoint
	fs        afs.Service
	streams   map[string]*Stream
	defaultID string
}

// NewManager returns a Manager over the given endpoint.
func NewManager(endpoint Endpoint) *Manager {
	return &Manager{
		endpoint: endpoint,
		fs:       afs.New(),
		streams:  map[string]*Stream{},
	}
}

// Get returns the stream with the given id, or nil.
func (m *Manager) Get(streamID string) *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[streamID]
}

// Default returns the session's default stream, or nil.
func (m *Manager) Default() *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defaultID == "" {
		return nil
	}
	return m.streams[m.defaultID]
}

// Start creates a stream and makes it the session default.
//
// For logfile mode with no explicit path, the endpoint's currently
// configured transcript path is used verbatim; guessing a path invites
// path and encoding mismatches. The transcript feature is enabled on the
// endpoint, recording whether this call was the one that enabled it. The
// initial cursor is the current end of file unless reset asks for offset 0.
func (m *Manager) Start(ctx context.Context, mode Mode, path string, reset bool) (*Stream, error) {
	switch mode {
	case ModeLastPrompt:
		return m.track(&Stream{ID: uuid.New().String(), Mode: mode}), nil
	case ModeLogfile:
	default:
		return nil, fmt.Errorf("mode must be %q or %q", ModeLogfile, ModeLastPrompt)
	}

	explicit := path != ""
	if explicit {
		if err := m.endpoint.SetLogFile(ctx, path); err != nil {
			return nil, err
		}
	}
	alreadyOn, err := m.endpoint.EnableLogging(ctx)
	if err != nil {
		return nil, err
	}
	if !explicit {
		// The endpoint may normalize or override the path; always ask for
		// the effective one.
		if path, err = m.endpoint.LogFilePath(ctx); err != nil {
			return nil, err
		}
		if path == "" {
			return nil, fmt.Errorf("endpoint reports no transcript path; pass one explicitly")
		}
	}

	stream := &Stream{
		ID:             uuid.New().String(),
		Mode:           mode,
		Path:           path,
		enabledLogging: !alreadyOn,
	}
	if !reset {
		if object, err := m.fs.Object(ctx, path); err == nil {
			stream.cursor = object.Size()
		}
	}
	return m.track(stream), nil
}

func (m *Manager) track(stream *Stream) *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[stream.ID] = stream
	m.defaultID = stream.ID
	return stream
}

// Stop destroys a stream, best-effort. The endpoint's transcript feature is
// disabled only when this stream was the one that enabled it and no other
// live logfile stream remains; transcript state is cooperative, not owned,
// so a disable failure never fails the caller.
func (m *Manager) Stop(ctx context.Context, streamID string) bool {
	m.mu.Lock()
	stream, ok := m.streams[streamID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.streams, streamID)
	if m.defaultID == streamID {
		m.defaultID = ""
		for id := range m.streams {
			m.defaultID = id
			break
		}
	}
	remainingLogfile := false
	for _, other := range m.streams {
		if other.Mode == ModeLogfile {
			remainingLogfile = true
			break
		}
	}
	m.mu.Unlock()

	if stream.Mode == ModeLogfile && stream.enabledLogging && !remainingLogfile {
		_ = m.endpoint.DisableLogging(ctx)
	}
	return true
}

// ReadSince serves the stream's content strictly after cursor, up to
// maxBytes. The returned NewCursor is the only valid cursor for the next
// call; concatenating the Text of successive calls yields the artifact's
// content with no gaps or repeats. For lastprompt streams the cursor and
// maxBytes are meaningless and the current register value is returned.
func (m *Manager) ReadSince(ctx context.Context, streamID string, cursor int64, maxBytes int) (Chunk, error) {
	stream := m.Get(streamID)
	if stream == nil {
		return Chunk{}, fmt.Errorf("unknown stream %q", streamID)
	}
	if stream.Mode == ModeLastPrompt {
		return Chunk{Text: m.endpoint.LastPrompt(ctx), NewCursor: cursor}, nil
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	object, err := m.fs.Object(ctx, stream.Path)
	if err != nil {
		// The transcript may not exist yet; nothing to serve.
		return Chunk{NewCursor: cursor}, nil
	}
	size := object.Size()
	if cursor > size {
		// Rotated or truncated underneath us; degrade instead of erroring.
		cursor = size
	}
	toRead := size - cursor
	if int64(maxBytes) < toRead {
		toRead = int64(maxBytes)
	}
	if toRead <= 0 {
		return Chunk{NewCursor: cursor}, nil
	}

	data, err := readRange(stream.Path, cursor, toRead)
	if err != nil {
		return Chunk{}, err
	}
	newCursor := cursor + int64(len(data))
	chunk := Chunk{
		Text:      decode(data, m.endpoint.CodePage(ctx)),
		NewCursor: newCursor,
		Truncated: newCursor < size && len(data) == maxBytes,
	}
	if newCursor > stream.cursor {
		stream.cursor = newCursor
	}
	return chunk, nil
}

// ReadTail returns the last tailBytes of a logfile stream's transcript
// without moving its cursor.
func (m *Manager) ReadTail(ctx context.Context, streamID string, tailBytes int) (string, error) {
	stream := m.Get(streamID)
	if stream == nil || stream.Mode != ModeLogfile {
		return "", nil
	}
	object, err := m.fs.Object(ctx, stream.Path)
	if err != nil {
		return "", nil
	}
	size := object.Size()
	start := size - int64(tailBytes)
	if start < 0 {
		start = 0
	}
	data, err := readRange(stream.Path, start, size-start)
	if err != nil {
		return "", err
	}
	return decode(data, m.endpoint.CodePage(ctx)), nil
}

// readRange reads length bytes at offset. afs objects expose whole-object
// download only, so the ranged read goes through the file directly.
func readRange(path string, offset, length int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if _, err = file.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	data := make([]byte, length)
	read, err := io.ReadFull(file, data)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return data[:read], nil
}
