package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ISONow returns the current UTC time in the millisecond ISO form used
// across tool results and audit records.
func ISONow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

type auditRecord struct {
	TS        string      `json:"ts"`
	SessionID string      `json:"session_id"`
	Event     string      `json:"event"`
	Dwg       string      `json:"dwg,omitempty"`
	Payload   interface{} `json:"payload"`
}

// AuditLog appends one JSON line per tool invocation to the session's
// audit file. Writes are best-effort: audit must never fail a tool call.
type AuditLog struct {
	mu        sync.Mutex
	file      *os.File
	sessionID string
}

// NewAuditLog opens (creating directories as needed) the session audit file.
func NewAuditLog(path, sessionID string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &AuditLog{file: file, sessionID: sessionID}, nil
}

// Log appends one event record.
func (l *AuditLog) Log(event string, payload interface{}, dwg string) {
	record := auditRecord{
		TS:        ISONow(),
		SessionID: l.sessionID,
		Event:     event,
		Dwg:       dwg,
		Payload:   payload,
	}
	line, err := json.Marshal(record)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.Write(append(line, '\n'))
}

// Close releases the underlying file.
func (l *AuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
