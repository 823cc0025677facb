package acad

import (
	"context"
	"fmt"
	"strings"
)

// Transcript control. The endpoint's command-line transcript is governed by
// two cooperative, globally visible flags: LOGFILENAME (the path) and
// LOGFILEMODE (the enable switch). Other clients, or the user, may toggle
// them independently; callers track who enabled what.

// LogFilePath returns the endpoint's currently configured transcript path,
// or "" when none is set.
func (b *Bridge) LogFilePath(ctx context.Context) (string, error) {
	value, err := b.GetVariable(ctx, "LOGFILENAME")
	if err != nil {
		return "", err
	}
	if value == nil {
		return "", nil
	}
	return strings.TrimSpace(fmt.Sprint(value)), nil
}

// SetLogFile overrides the transcript path. LOGFILENAME must be set before
// LOGFILEMODE is enabled on some installs. Some environments block the
// variable write over automation; those fall back to a setvar expression on
// the command line.
func (b *Bridge) SetLogFile(ctx context.Context, path string) error {
	if err := b.SetVariable(ctx, "LOGFILENAME", path); err == nil {
		return nil
	}
	expr := fmt.Sprintf("(setvar \"LOGFILENAME\" \"%s\")\n(princ)", QuoteString(NormalizePath(path)))
	_, err := b.Send(ctx, expr)
	return err
}

// EnableLogging turns the transcript on and reports whether it was already
// enabled externally, so a later disable never turns off a feature this
// caller did not enable.
func (b *Bridge) EnableLogging(ctx context.Context) (alreadyOn bool, err error) {
	if mode, err := b.GetVariable(ctx, "LOGFILEMODE"); err == nil {
		if active, err := intValue(mode); err == nil && active != 0 {
			return true, nil
		}
	}
	if err = b.SetVariable(ctx, "LOGFILEMODE", 1); err == nil {
		return false, nil
	}
	_, err = b.Send(ctx, "(setvar \"LOGFILEMODE\" 1)\n(princ)")
	return false, err
}

// DisableLogging turns the transcript off, best-effort.
func (b *Bridge) DisableLogging(ctx context.Context) error {
	if err := b.SetVariable(ctx, "LOGFILEMODE", 0); err == nil {
		return nil
	}
	_, err := b.Send(ctx, "(setvar \"LOGFILEMODE\" 0)\n(princ)")
	return err
}

// CodePage returns the endpoint's reported system code page
// (e.g. "ANSI_1251"), or "" when unreadable.
func (b *Bridge) CodePage(ctx context.Context) string {
	value, err := b.GetVariable(ctx, "SYSCODEPAGE")
	if err != nil || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
