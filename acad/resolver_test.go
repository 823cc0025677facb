package acad

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	config := NewConfig()
	config.Retry = testPolicy(3)
	return config
}

func TestResolver_AttachFirstVisible(t *testing.T) {
	connector := newFakeConnector()
	connector.attachable["AutoCAD.Application.24"] = newFakeAutomation("24.0")

	resolver := NewResolver(testConfig(), connector)
	endpoint, err := resolver.Resolve(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, "AutoCAD.Application.24", endpoint.ProgID)
	assert.Equal(t, 24, endpoint.Major)
	assert.Equal(t, 4242, endpoint.PID)
}

func TestResolver_VersionPinFiltersCandidates(t *testing.T) {
	connector := newFakeConnector()
	connector.attachable["AutoCAD.Application.25"] = newFakeAutomation("25.0")
	connector.attachable["AutoCAD.Application.23"] = newFakeAutomation("23.1s (LMS Tech)")

	config := testConfig()
	config.TargetMajor = 23
	resolver := NewResolver(config, connector)
	endpoint, err := resolver.Resolve(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, 23, endpoint.Major)
}

func TestResolver_VersionMismatch(t *testing.T) {
	connector := newFakeConnector()
	connector.attachable["AutoCAD.Application.25"] = newFakeAutomation("25.0")

	config := testConfig()
	config.TargetMajor = 19
	resolver := NewResolver(config, connector)
	_, err := resolver.Resolve(context.Background())
	var resolveErr *ResolveError
	assert.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, VersionMismatch, resolveErr.Kind)
}

func TestResolver_NoInstanceNoStart(t *testing.T) {
	connector := newFakeConnector()
	config := testConfig()
	config.AllowNewInstance = false
	config.LaunchExe = `C:\acad\acad.exe`

	resolver := NewResolver(config, connector)
	_, err := resolver.Resolve(context.Background())
	var resolveErr *ResolveError
	assert.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, NoInstanceFound, resolveErr.Kind)
	assert.Empty(t, connector.started, "no process may be started when new instances are disallowed")
}

func TestResolver_DispatchAttachesRunningInstance(t *testing.T) {
	connector := newFakeConnector()
	connector.activated = newFakeAutomation("24.0")
	connector.activateID = "AutoCAD.Application.24"
	connector.pids = []int{4242}

	config := testConfig()
	config.UseDispatch = true
	resolver := NewResolver(config, connector)
	endpoint, err := resolver.Resolve(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, 24, endpoint.Major)
	assert.False(t, connector.activated.quitCalled)
}

func TestResolver_DispatchSpawnRolledBackWhenDisallowed(t *testing.T) {
	connector := newFakeConnector()
	connector.activated = newFakeAutomation("24.0")
	connector.activateID = "AutoCAD.Application.24"
	connector.spawnsOnUse = true

	config := testConfig()
	config.UseDispatch = true
	config.AllowNewInstance = false
	resolver := NewResolver(config, connector)
	_, err := resolver.Resolve(context.Background())
	assert.NotNil(t, err)
	assert.True(t, connector.activated.quitCalled, "spawned instance must be closed again")
}

func TestResolver_LaunchThenAttach(t *testing.T) {
	connector := newFakeConnector()
	config := testConfig()
	config.LaunchExe = `C:\acad\acad.exe`
	config.LaunchWait = 3 * time.Second

	// The instance becomes attachable shortly after the launch.
	go func() {
		time.Sleep(100 * time.Millisecond)
		connector.mu.Lock()
		connector.attachable["AutoCAD.Application.24"] = newFakeAutomation("24.0")
		connector.mu.Unlock()
	}()

	resolver := NewResolver(config, connector)
	endpoint, err := resolver.Resolve(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, []string{`C:\acad\acad.exe`}, connector.started)
	assert.Equal(t, 24, endpoint.Major)
}

func TestResolver_LaunchTimeout(t *testing.T) {
	connector := newFakeConnector()
	config := testConfig()
	config.LaunchExe = `C:\acad\acad.exe`
	config.LaunchWait = 100 * time.Millisecond

	resolver := NewResolver(config, connector)
	_, err := resolver.Resolve(context.Background())
	var resolveErr *ResolveError
	assert.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, LaunchTimeout, resolveErr.Kind)
}

func TestResolver_ProgIDOrder(t *testing.T) {
	connector := newFakeConnector()
	connector.curVerProgID = "AutoCAD.Application.21"

	config := testConfig()
	config.TargetMajor = 24
	config.PreferCurVer = true
	resolver := NewResolver(config, connector)
	ids := resolver.progIDs()
	assert.Equal(t, "AutoCAD.Application.24", ids[0], "pinned version first")
	assert.Equal(t, "AutoCAD.Application", ids[len(ids)-1], "unversioned last")
	assert.Contains(t, ids, "AutoCAD.Application.21")
	// No duplicate for the pinned entry, which is also in the 30..19 range.
	seen := map[string]int{}
	for _, id := range ids {
		seen[id]++
		assert.Equal(t, 1, seen[id], id)
	}
}
