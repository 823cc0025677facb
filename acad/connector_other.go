//go:build !windows

package acad

import (
	"context"
	"fmt"
	"runtime"
)

// NewConnector is only functional on Windows, where the application exposes
// its automation surface over COM. Other platforms still build so the rest
// of the module stays portable and testable.
func NewConnector(ctx context.Context) (Connector, error) {
	return nil, fmt.Errorf("COM automation is not available on %s", runtime.GOOS)
}
