//go:build windows

package acad

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner/local"
	"golang.org/x/sys/windows/registry"
)

const (
	hresultCallRejected      = 0x80010001 // RPC_E_CALL_REJECTED
	hresultDisconnected      = 0x80010108 // RPC_E_DISCONNECTED
	hresultServerUnavailable = 0x800706BA // RPC_S_SERVER_UNAVAILABLE
	hresultServerDied        = 0x80010007 // RPC_E_SERVERCALL / server died
)

var getWindowThreadProcessID = syscall.NewLazyDLL("user32.dll").NewProc("GetWindowThreadProcessId")

// comInit initializes COM for the calling thread. Tool calls may run on any
// goroutine; CoInitialize is safe to repeat and returns S_FALSE when the
// thread is already initialized.
func comInit() {
	_ = ole.CoInitialize(0)
}

// comError translates a raw COM failure into the package's typed error
// signatures so retry and re-resolution decisions stay generic.
func comError(err error) error {
	if err == nil {
		return nil
	}
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		switch uint32(oleErr.Code()) {
		case hresultCallRejected:
			return fmt.Errorf("%w: %v", ErrBusy, err)
		case hresultDisconnected, hresultServerUnavailable, hresultServerDied:
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
	}
	return err
}

type comConnector struct {
	shell *gosh.Service
}

// NewConnector returns the COM-backed connector used on Windows.
func NewConnector(ctx context.Context) (Connector, error) {
	shell, err := gosh.New(ctx, local.New())
	if err != nil {
		return nil, err
	}
	return &comConnector{shell: shell}, nil
}

func (c *comConnector) Attach(progID string) (Automation, error) {
	comInit()
	unknown, err := oleutil.GetActiveObject(progID)
	if err != nil {
		return nil, comError(err)
	}
	return c.wrap(unknown)
}

func (c *comConnector) Activate(progID string) (Automation, error) {
	comInit()
	unknown, err := oleutil.CreateObject(progID)
	if err != nil {
		return nil, comError(err)
	}
	return c.wrap(unknown)
}

func (c *comConnector) wrap(unknown *ole.IUnknown) (Automation, error) {
	app, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, comError(err)
	}
	if _, err = oleutil.PutProperty(app, "Visible", true); err != nil {
		// Some installs reject Visible while a modal dialog is up; the
		// handle is still usable.
		_ = err
	}
	return &comAutomation{app: app}, nil
}

// CurrentVersionProgID reads the registry-advertised CurVer identity. Some
// setups only register this one; verticals may hijack it, so the resolver
// consults it only on request.
func (c *comConnector) CurrentVersionProgID() string {
	for _, root := range []struct {
		key  registry.Key
		path string
	}{
		{registry.CLASSES_ROOT, `AutoCAD.Application\CurVer`},
		{registry.CURRENT_USER, `Software\Classes\AutoCAD.Application\CurVer`},
		{registry.LOCAL_MACHINE, `SOFTWARE\Classes\AutoCAD.Application\CurVer`},
		{registry.LOCAL_MACHINE, `SOFTWARE\Classes\Wow6432Node\AutoCAD.Application\CurVer`},
	} {
		key, err := registry.OpenKey(root.key, root.path, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		value, _, err := key.GetStringValue("")
		_ = key.Close()
		if err == nil && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// ProcessIDs snapshots running pids for an image name via tasklist.
func (c *comConnector) ProcessIDs(image string) []int {
	output, _, err := c.shell.Run(context.Background(),
		fmt.Sprintf(`tasklist /FI "IMAGENAME eq %s" /FO CSV /NH`, image))
	if err != nil {
		return nil
	}
	var pids []int
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "INFO:") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			continue
		}
		pid, err := strconv.Atoi(strings.Trim(strings.TrimSpace(parts[1]), `"`))
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}

func (c *comConnector) StartProcess(exe string, args []string) error {
	cmd := exec.Command(exe, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Detach: the launched application outlives this process.
	return cmd.Process.Release()
}

type comAutomation struct {
	app *ole.IDispatch
}

// document returns the active document dispatch; a failure here doubles as
// the liveness signal for the whole handle.
func (a *comAutomation) document() (*ole.IDispatch, error) {
	comInit()
	doc, err := oleutil.GetProperty(a.app, "ActiveDocument")
	if err != nil {
		return nil, comError(err)
	}
	return doc.ToIDispatch(), nil
}

func (a *comAutomation) SendCommand(text string) error {
	doc, err := a.document()
	if err != nil {
		return err
	}
	defer doc.Release()
	_, err = oleutil.CallMethod(doc, "SendCommand", text)
	return comError(err)
}

func (a *comAutomation) GetVariable(name string) (interface{}, error) {
	doc, err := a.document()
	if err != nil {
		return nil, err
	}
	defer doc.Release()
	value, err := oleutil.CallMethod(doc, "GetVariable", name)
	if err != nil {
		return nil, comError(err)
	}
	return value.Value(), nil
}

func (a *comAutomation) SetVariable(name string, value interface{}) error {
	doc, err := a.document()
	if err != nil {
		return err
	}
	defer doc.Release()
	_, err = oleutil.CallMethod(doc, "SetVariable", name, value)
	return comError(err)
}

func (a *comAutomation) Quiescent() (bool, error) {
	comInit()
	stateValue, err := oleutil.CallMethod(a.app, "GetAcadState")
	if err != nil {
		return false, comError(err)
	}
	acadState := stateValue.ToIDispatch()
	if acadState == nil {
		return false, fmt.Errorf("GetAcadState returned no object")
	}
	defer acadState.Release()
	quiescent, err := oleutil.GetProperty(acadState, "IsQuiescent")
	if err != nil {
		return false, comError(err)
	}
	flag, _ := quiescent.Value().(bool)
	return flag, nil
}

func (a *comAutomation) DocName() (string, error) {
	doc, err := a.document()
	if err != nil {
		return "", err
	}
	defer doc.Release()
	name, err := oleutil.GetProperty(doc, "Name")
	if err != nil {
		return "", comError(err)
	}
	return fmt.Sprint(name.Value()), nil
}

func (a *comAutomation) DocPath() (string, error) {
	doc, err := a.document()
	if err != nil {
		return "", err
	}
	defer doc.Release()
	path, err := oleutil.GetProperty(doc, "Path")
	if err != nil {
		return "", comError(err)
	}
	return fmt.Sprint(path.Value()), nil
}

func (a *comAutomation) WindowHandle() (int, error) {
	comInit()
	hwnd, err := oleutil.GetProperty(a.app, "HWND")
	if err != nil {
		return 0, comError(err)
	}
	handle, err := intValue(hwnd.Value())
	if err != nil || handle <= 0 {
		return 0, fmt.Errorf("no usable window handle")
	}
	return handle, nil
}

func (a *comAutomation) ProcessID() (int, error) {
	handle, err := a.WindowHandle()
	if err != nil {
		return 0, err
	}
	var pid uint32
	_, _, _ = getWindowThreadProcessID.Call(uintptr(handle), uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return 0, fmt.Errorf("no process id for window %d", handle)
	}
	return int(pid), nil
}

func (a *comAutomation) Quit() error {
	comInit()
	_, err := oleutil.CallMethod(a.app, "Quit")
	return comError(err)
}
