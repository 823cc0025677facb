package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/viant/mcp-protocol/schema"
	proto "github.com/viant/mcp-protocol/server"
	"github.com/viant/mcp/server"

	"github.com/acadmcp/acadmcp/acad"
)

const serverVersion = "0.1"

// Options configures one server process. Every knob has an environment
// override so MCP clients can configure the server without argv plumbing.
type Options struct {
	HTTPAddr         string  `short:"a" long:"http" description:"serve MCP over streamable HTTP on this address instead of stdio" env:"AUTOCAD_MCP_HTTP_ADDR"`
	LogDir           string  `long:"log-dir" description:"base directory for per-session logs" env:"AUTOCAD_MCP_LOG_DIR"`
	TargetMajor      int     `long:"target-major" description:"required AutoCAD major version, 0 accepts any" env:"AUTOCAD_MCP_TARGET_MAJOR"`
	AllowNewInstance string  `long:"allow-new-instance" description:"permit starting a new AutoCAD instance" default:"true" env:"AUTOCAD_MCP_ALLOW_NEW_INSTANCE"`
	UseDispatch      string  `long:"use-dispatch" description:"resolve via versioned ProgID dispatch" env:"AUTOCAD_MCP_USE_DISPATCH"`
	PreferCurVer     string  `long:"prefer-curver" description:"consult the registry CurVer ProgID before unversioned fallback" env:"AUTOCAD_MCP_PREFER_CURVER"`
	LaunchExe        string  `long:"acad-exe" description:"explicit acad.exe path to launch when no instance is running" env:"AUTOCAD_MCP_ACAD_EXE"`
	LaunchArgs       string  `long:"acad-args" description:"arguments passed to the launched AutoCAD process" env:"AUTOCAD_MCP_ACAD_ARGS"`
	LaunchWaitSec    float64 `long:"launch-wait-sec" description:"seconds to wait for a launched instance to accept automation" default:"30" env:"AUTOCAD_MCP_LAUNCH_WAIT_SEC"`
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (o *Options) acadConfig() acad.Config {
	config := acad.NewConfig()
	config.TargetMajor = o.TargetMajor
	config.AllowNewInstance = o.AllowNewInstance == "" || truthy(o.AllowNewInstance)
	config.UseDispatch = truthy(o.UseDispatch)
	config.PreferCurVer = truthy(o.PreferCurVer)
	config.LaunchExe = o.LaunchExe
	config.LaunchArgs = strings.Fields(o.LaunchArgs)
	if o.LaunchWaitSec > 0 {
		config.LaunchWait = secondsOr(&o.LaunchWaitSec, 0)
	}
	return config
}

func (o *Options) baseLogDir() string {
	if o.LogDir != "" {
		return o.LogDir
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return filepath.Join(cwd, "logs", "acad-cmd")
}

// Run parses options, resolves the session service and serves MCP over
// stdio, or over streamable HTTP when an address is given.
func Run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	ctx := context.Background()
	service, err := New(ctx, options)
	if err != nil {
		return err
	}
	defer service.Close()

	newHandler := proto.WithDefaultHandler(ctx, service.Register)
	srv, err := server.New(
		server.WithNewHandler(newHandler),
		server.WithImplementation(schema.Implementation{Name: "acad-mcp", Version: serverVersion}),
	)
	if err != nil {
		return err
	}
	if options.HTTPAddr != "" {
		srv.UseStreamableHTTP(true)
		return srv.HTTP(ctx, options.HTTPAddr).ListenAndServe()
	}
	return srv.Stdio(ctx).ListenAndServe()
}
