package acad

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBridge(t *testing.T, auto *fakeAutomation) (*Bridge, *fakeConnector) {
	connector := newFakeConnector()
	connector.attachable["AutoCAD.Application.24"] = auto
	return NewBridge(testConfig(), connector), connector
}

func TestBridge_SendAppendsNewline(t *testing.T) {
	auto := newFakeAutomation("24.0")
	bridge, _ := testBridge(t, auto)

	commandID, err := bridge.Send(context.Background(), "LINE 0,0 10,10")
	assert.Nil(t, err)
	assert.NotEmpty(t, commandID)
	assert.Equal(t, []string{"LINE 0,0 10,10\n"}, auto.sent)
}

func TestBridge_SendRetriesBusy(t *testing.T) {
	auto := newFakeAutomation("24.0")
	auto.busySends = 2
	bridge, _ := testBridge(t, auto)

	_, err := bridge.Send(context.Background(), "REGEN")
	assert.Nil(t, err)
	assert.Equal(t, []string{"REGEN\n"}, auto.sent)
}

func TestBridge_WaitForIdle_Timeout(t *testing.T) {
	auto := newFakeAutomation("24.0")
	auto.quiescent = false
	auto.vars["CMDACTIVE"] = 1
	bridge, _ := testBridge(t, auto)

	timeout := 150 * time.Millisecond
	poll := 50 * time.Millisecond
	started := time.Now()
	result := bridge.WaitForIdle(context.Background(), timeout, poll)
	elapsed := time.Since(started)

	assert.False(t, result.Completed, "timeout is a flag, not an error")
	assert.True(t, result.NeedsInput)
	assert.True(t, elapsed >= timeout)
	assert.True(t, elapsed < timeout+2*poll, "returns within one poll interval of the deadline")
}

func TestBridge_WaitForIdle_Idle(t *testing.T) {
	auto := newFakeAutomation("24.0")
	bridge, _ := testBridge(t, auto)

	result := bridge.WaitForIdle(context.Background(), time.Second, 10*time.Millisecond)
	assert.True(t, result.Completed)
	assert.True(t, result.Quiescent)
	assert.False(t, result.NeedsInput)
}

func TestBridge_ReResolvesAfterDisconnect(t *testing.T) {
	auto := newFakeAutomation("24.0")
	bridge, connector := testBridge(t, auto)

	_, err := bridge.Send(context.Background(), "REGEN")
	assert.Nil(t, err)

	// The instance dies; the next call must re-resolve instead of retrying
	// the stale handle.
	auto.mu.Lock()
	auto.disconnected = true
	auto.mu.Unlock()

	replacement := newFakeAutomation("24.0")
	connector.mu.Lock()
	connector.attachable["AutoCAD.Application.24"] = replacement
	connector.mu.Unlock()

	_, err = bridge.Send(context.Background(), "REGEN")
	assert.Nil(t, err)
	assert.Equal(t, []string{"REGEN\n"}, replacement.sent)
}

func TestBridge_Status(t *testing.T) {
	auto := newFakeAutomation("24.0")
	auto.docPath = `C:\work`
	bridge, _ := testBridge(t, auto)

	status := bridge.Status(context.Background())
	assert.True(t, status.Connected)
	assert.Equal(t, "24.0", status.Version)
	assert.Equal(t, 4242, status.PID)
	assert.True(t, strings.HasSuffix(status.DocLabel, "Drawing1.dwg"))
}

func TestBridge_EnableLoggingTracksExternalState(t *testing.T) {
	auto := newFakeAutomation("24.0")
	bridge, _ := testBridge(t, auto)
	ctx := context.Background()

	alreadyOn, err := bridge.EnableLogging(ctx)
	assert.Nil(t, err)
	assert.False(t, alreadyOn)

	// A second enable sees the flag already set.
	alreadyOn, err = bridge.EnableLogging(ctx)
	assert.Nil(t, err)
	assert.True(t, alreadyOn)

	assert.Nil(t, bridge.DisableLogging(ctx))
	mode, _ := auto.GetVariable("LOGFILEMODE")
	assert.Equal(t, 0, mode)
}
