package acad

// Automation is the call surface of one live application instance. Callers
// borrow it through the Bridge; they never own it. Implementations map errors
// to ErrBusy / ErrDisconnected so retry and re-resolution decisions stay
// platform independent.
type Automation interface {
	// SendCommand submits command text to the application's command line.
	SendCommand(text string) error
	// GetVariable reads a system variable.
	GetVariable(name string) (interface{}, error)
	// SetVariable writes a system variable.
	SetVariable(name string, value interface{}) error
	// Quiescent reports whether the application is idle.
	Quiescent() (bool, error)
	// DocName returns the active document name; also serves as the
	// liveness probe for the handle.
	DocName() (string, error)
	// DocPath returns the active document directory, when available.
	DocPath() (string, error)
	// WindowHandle returns the main window handle, when obtainable.
	WindowHandle() (int, error)
	// ProcessID returns the owning process id, when obtainable.
	ProcessID() (int, error)
	// Quit closes the application instance.
	Quit() error
}

// Connector produces Automation handles and hosts the platform-specific
// discovery primitives the Resolver needs.
type Connector interface {
	// Attach connects to an already-running, automation-visible instance
	// registered under progID.
	Attach(progID string) (Automation, error)
	// Activate performs class-based activation of progID; depending on the
	// install this attaches to a running instance or starts a new process.
	Activate(progID string) (Automation, error)
	// CurrentVersionProgID returns the registry-advertised CurVer ProgID,
	// or "" when none is registered.
	CurrentVersionProgID() string
	// ProcessIDs returns a best-effort snapshot of process ids for the
	// given image name.
	ProcessIDs(image string) []int
	// StartProcess starts an executable detached from the current process.
	StartProcess(exe string, args []string) error
}
