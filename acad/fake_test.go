package acad

import (
	"fmt"
	"sync"
)

// fakeAutomation simulates the automation surface of one live instance.
type fakeAutomation struct {
	mu           sync.Mutex
	vars         map[string]interface{}
	quiescent    bool
	docName      string
	docPath      string
	hwnd         int
	pid          int
	sent         []string
	busySends    int
	disconnected bool
	quitCalled   bool
}

func newFakeAutomation(version string) *fakeAutomation {
	return &fakeAutomation{
		vars:      map[string]interface{}{"ACADVER": version, "CMDACTIVE": 0},
		quiescent: true,
		docName:   "Drawing1.dwg",
		hwnd:      101,
		pid:       4242,
	}
}

func (f *fakeAutomation) SendCommand(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disconnected {
		return fmt.Errorf("%w: fake", ErrDisconnected)
	}
	if f.busySends > 0 {
		f.busySends--
		return fmt.Errorf("%w: fake", ErrBusy)
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeAutomation) GetVariable(name string) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disconnected {
		return nil, fmt.Errorf("%w: fake", ErrDisconnected)
	}
	return f.vars[name], nil
}

func (f *fakeAutomation) SetVariable(name string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disconnected {
		return fmt.Errorf("%w: fake", ErrDisconnected)
	}
	f.vars[name] = value
	return nil
}

func (f *fakeAutomation) Quiescent() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quiescent, nil
}

func (f *fakeAutomation) DocName() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disconnected {
		return "", fmt.Errorf("%w: fake", ErrDisconnected)
	}
	return f.docName, nil
}

func (f *fakeAutomation) DocPath() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docPath, nil
}

func (f *fakeAutomation) WindowHandle() (int, error) {
	return f.hwnd, nil
}

func (f *fakeAutomation) ProcessID() (int, error) {
	return f.pid, nil
}

func (f *fakeAutomation) Quit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quitCalled = true
	return nil
}

// fakeConnector simulates discovery: a set of attachable instances keyed by
// ProgID, optional activation behavior, and a process table.
type fakeConnector struct {
	mu           sync.Mutex
	attachable   map[string]*fakeAutomation
	activated    *fakeAutomation
	activateID   string
	spawnsOnUse  bool
	pids         []int
	started      []string
	curVerProgID string
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{attachable: map[string]*fakeAutomation{}}
}

func (c *fakeConnector) Attach(progID string) (Automation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if auto, ok := c.attachable[progID]; ok {
		return auto, nil
	}
	return nil, fmt.Errorf("no active object for %v", progID)
}

func (c *fakeConnector) Activate(progID string) (Automation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activated == nil || (c.activateID != "" && c.activateID != progID) {
		return nil, fmt.Errorf("cannot activate %v", progID)
	}
	if c.spawnsOnUse {
		c.pids = append(c.pids, c.activated.pid)
		c.spawnsOnUse = false
	}
	return c.activated, nil
}

func (c *fakeConnector) CurrentVersionProgID() string {
	return c.curVerProgID
}

func (c *fakeConnector) ProcessIDs(image string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.pids...)
}

func (c *fakeConnector) StartProcess(exe string, args []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, exe)
	return nil
}
