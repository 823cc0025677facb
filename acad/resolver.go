package acad

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const processImage = "acad.exe"

// Config carries the recognized endpoint resolution options. Zero values
// mean "not configured"; NewConfig applies defaults.
type Config struct {
	// TargetMajor pins resolution to a specific major version (AutoCAD
	// 2021 is 24). Zero accepts the first visible instance.
	TargetMajor int
	// AllowNewInstance permits spawning a new process when no running
	// instance is attachable. Many installs never register a running
	// instance for active-object attach, so attach-only setups are fragile;
	// the default is therefore true.
	AllowNewInstance bool
	// UseDispatch forces class-based activation as an attach fallback even
	// without a version pin (a pin enables it implicitly).
	UseDispatch bool
	// PreferCurVer adds the registry-advertised CurVer ProgID to the
	// candidate list. Off by default: CurVer can be hijacked by vertical
	// products and attach to the wrong application.
	PreferCurVer bool
	// LaunchExe, LaunchArgs and LaunchWait control an explicit launch when
	// nothing is attachable.
	LaunchExe  string
	LaunchArgs []string
	LaunchWait time.Duration

	Retry RetryPolicy
}

// NewConfig returns a Config with defaults applied.
func NewConfig() Config {
	return Config{
		AllowNewInstance: true,
		LaunchWait:       30 * time.Second,
		Retry:            DefaultRetryPolicy(),
	}
}

// Endpoint is the resolved live automation handle plus whatever identity the
// instance yielded. Identity fields are best-effort; absence of any single
// one is never fatal.
type Endpoint struct {
	Automation Automation
	ProgID     string
	Version    string
	Major      int
	WindowID   int
	PID        int
}

// Resolver discovers, attaches to, or launches the single automation
// endpoint for a session.
type Resolver struct {
	config    Config
	connector Connector
}

// NewResolver returns a Resolver over the given connector.
func NewResolver(config Config, connector Connector) *Resolver {
	return &Resolver{config: config, connector: connector}
}

// progIDs returns class candidates in preferred order: a pinned version
// first, then versioned ProgIDs newest to oldest, then (optionally) the
// registry CurVer identity, with the unversioned ProgID last.
func (r *Resolver) progIDs() []string {
	var ids []string
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if r.config.TargetMajor > 0 {
		add(fmt.Sprintf("AutoCAD.Application.%d", r.config.TargetMajor))
	}
	for v := 30; v > 18; v-- {
		add(fmt.Sprintf("AutoCAD.Application.%d", v))
	}
	if r.config.PreferCurVer {
		add(r.connector.CurrentVersionProgID())
	}
	add("AutoCAD.Application")
	return ids
}

var errWrongVersion = fmt.Errorf("instance version does not match pin")

// verify checks the pinned major version against the live instance and fills
// in the endpoint's best-effort identity.
func (r *Resolver) verify(ctx context.Context, endpoint *Endpoint) error {
	auto := endpoint.Automation
	version, err := Retry(ctx, r.config.Retry, func() (interface{}, error) {
		return auto.GetVariable("ACADVER")
	})
	if err == nil {
		endpoint.Version = strings.TrimSpace(fmt.Sprint(version))
		if major, ok := ParseVersionMajor(version); ok {
			endpoint.Major = major
		}
	}
	if r.config.TargetMajor > 0 && endpoint.Major != r.config.TargetMajor {
		return errWrongVersion
	}
	if hwnd, err := auto.WindowHandle(); err == nil {
		endpoint.WindowID = hwnd
	}
	if pid, err := auto.ProcessID(); err == nil {
		endpoint.PID = pid
	}
	return nil
}

func (r *Resolver) attach(ctx context.Context, progID string) (*Endpoint, error) {
	auto, err := Retry(ctx, r.config.Retry, func() (Automation, error) {
		return r.connector.Attach(progID)
	})
	if err != nil {
		return nil, err
	}
	// Touching the active document proves the handle is live.
	if _, err = Retry(ctx, r.config.Retry, auto.DocName); err != nil {
		return nil, err
	}
	endpoint := &Endpoint{Automation: auto, ProgID: progID}
	if err = r.verify(ctx, endpoint); err != nil {
		return nil, err
	}
	return endpoint, nil
}

// Resolve runs the discovery sequence: attach, class-based activation,
// explicit launch. It returns a live Endpoint or a typed ResolveError.
func (r *Resolver) Resolve(ctx context.Context) (*Endpoint, error) {
	sawWrongVersion := false
	for _, progID := range r.progIDs() {
		endpoint, err := r.attach(ctx, progID)
		if err == errWrongVersion {
			sawWrongVersion = true
			continue
		}
		if err != nil {
			continue
		}
		return endpoint, nil
	}

	if r.config.UseDispatch || r.config.TargetMajor > 0 {
		if endpoint, ok := r.activate(ctx); ok {
			return endpoint, nil
		}
	}

	if r.config.LaunchExe != "" && r.config.AllowNewInstance {
		return r.launch(ctx)
	}

	if sawWrongVersion {
		return nil, resolveErrorf(VersionMismatch, "no instance with major version %d", r.config.TargetMajor)
	}
	return nil, resolveErrorf(NoInstanceFound, "no attachable instance and launching a new one is not enabled")
}

// activate tries class-based activation over versioned ProgIDs only; an
// unversioned activation may start the wrong product. When activation spawns
// a new process while AllowNewInstance is off, the spawn is closed and the
// search continues.
func (r *Resolver) activate(ctx context.Context) (*Endpoint, bool) {
	before := map[int]bool{}
	for _, pid := range r.connector.ProcessIDs(processImage) {
		before[pid] = true
	}
	for _, progID := range r.progIDs() {
		if !strings.Contains(progID, ".Application.") {
			continue
		}
		auto, err := r.connector.Activate(progID)
		if err != nil {
			continue
		}
		endpoint := &Endpoint{Automation: auto, ProgID: progID}
		if pid, err := auto.ProcessID(); err == nil {
			endpoint.PID = pid
		}
		if !r.config.AllowNewInstance && endpoint.PID != 0 && !before[endpoint.PID] &&
			len(r.connector.ProcessIDs(processImage)) > len(before) {
			_ = auto.Quit()
			continue
		}
		if _, err = Retry(ctx, r.config.Retry, auto.DocName); err != nil {
			continue
		}
		if err = r.verify(ctx, endpoint); err != nil {
			continue
		}
		return endpoint, true
	}
	return nil, false
}

// launch starts the configured executable and polls for attachability until
// the launch-wait deadline. The deadline is computed once up front.
func (r *Resolver) launch(ctx context.Context) (*Endpoint, error) {
	if err := r.connector.StartProcess(r.config.LaunchExe, r.config.LaunchArgs); err != nil {
		return nil, resolveErrorf(LaunchTimeout, "start %v: %v", r.config.LaunchExe, err)
	}
	deadline := time.Now().Add(r.config.LaunchWait)
	for time.Now().Before(deadline) {
		for _, progID := range r.progIDs() {
			endpoint, err := r.attach(ctx, progID)
			if err != nil {
				continue
			}
			return endpoint, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, resolveErrorf(LaunchTimeout, "launched %v but no instance became attachable within %v", r.config.LaunchExe, r.config.LaunchWait)
}
