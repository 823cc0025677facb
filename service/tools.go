package service

import (
	"context"
	"encoding/json"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	proto "github.com/viant/mcp-protocol/server"
)

// StatusInput carries no parameters.
type StatusInput struct{}

// DictListInput carries no parameters.
type DictListInput struct{}

// toolResult wraps a typed result into a call result with both structured
// content and a text rendering.
func toolResult(value interface{}) (*schema.CallToolResult, *jsonrpc.Error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, jsonrpc.NewInternalError(err.Error(), nil)
	}
	structured := map[string]interface{}{}
	if err := json.Unmarshal(data, &structured); err != nil {
		return nil, jsonrpc.NewInternalError(err.Error(), nil)
	}
	return &schema.CallToolResult{
		StructuredContent: structured,
		Content: []schema.CallToolResultContentElem{
			{Text: string(data), Type: "text"},
		},
	}, nil
}

func toolError(err error) *jsonrpc.Error {
	return jsonrpc.NewInternalError(err.Error(), nil)
}

// Register wires every tool of the session into the handler registry.
func (s *Service) Register(handler *proto.DefaultHandler) error {
	type registration func() error
	registrations := []registration{
		func() error {
			return proto.RegisterTool[*StatusInput, *StatusResult](handler.Registry,
				"get_status", "Report AutoCAD connection state, active drawing and the default output stream",
				func(ctx context.Context, _ *StatusInput) (*schema.CallToolResult, *jsonrpc.Error) {
					return toolResult(s.Status(ctx))
				})
		},
		func() error {
			return proto.RegisterTool[*SendCommandInput, *SendCommandResult](handler.Registry,
				"send_command", "Send a command line to the AutoCAD prompt and optionally wait for idle",
				func(ctx context.Context, in *SendCommandInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.SendCommand(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*StartLoggingInput, *StartLoggingResult](handler.Registry,
				"start_logging", "Start an output stream: a command-line transcript logfile or the last-prompt register",
				func(ctx context.Context, in *StartLoggingInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.StartLogging(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*StopLoggingInput, *StopLoggingResult](handler.Registry,
				"stop_logging", "Stop an output stream and disable transcript logging it enabled",
				func(ctx context.Context, in *StopLoggingInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.StopLogging(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*ReadOutputInput, *ReadOutputResult](handler.Registry,
				"get_new_output_since", "Read stream output appended after a cursor position",
				func(ctx context.Context, in *ReadOutputInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.ReadOutput(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*LastOutputInput, *LastOutputResult](handler.Registry,
				"get_last_output", "Fetch the most recent output from the last-prompt register or the transcript tail",
				func(ctx context.Context, in *LastOutputInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.LastOutput(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*LoadLispInput, *SendCommandResult](handler.Registry,
				"load_lisp_file", "Load an AutoLISP file into the active drawing",
				func(ctx context.Context, in *LoadLispInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.LoadLispFile(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*RunLispInput, *SendCommandResult](handler.Registry,
				"run_lisp", "Evaluate an AutoLISP expression with marker-delimited transcript output",
				func(ctx context.Context, in *RunLispInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.RunLisp(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*DictListInput, *DictListResult](handler.Registry,
				"dict_list", "List named object dictionaries in the active drawing",
				func(ctx context.Context, _ *DictListInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.DictList(ctx)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*DictNameInput, *DictKeysResult](handler.Registry,
				"dict_keys", "List keys and entry types of a named dictionary",
				func(ctx context.Context, in *DictNameInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.DictKeys(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*XrecordKeyInput, *XrecordGetResult](handler.Registry,
				"dict_xrecord_get", "Read an xrecord's typed values from a dictionary key",
				func(ctx context.Context, in *XrecordKeyInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.DictXrecordGet(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*XrecordSetInput, *XrecordSetResult](handler.Registry,
				"dict_xrecord_set", "Write typed values into an xrecord under a dictionary key",
				func(ctx context.Context, in *XrecordSetInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.DictXrecordSet(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*XrecordKeyInput, *XrecordDeleteResult](handler.Registry,
				"dict_xrecord_delete", "Delete one xrecord entry from a dictionary",
				func(ctx context.Context, in *XrecordKeyInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.DictXrecordDelete(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
		func() error {
			return proto.RegisterTool[*DictDeleteInput, *DictDeleteResult](handler.Registry,
				"dict_delete", "Delete a named dictionary, optionally with its entries",
				func(ctx context.Context, in *DictDeleteInput) (*schema.CallToolResult, *jsonrpc.Error) {
					result, err := s.DictDelete(ctx, in)
					if err != nil {
						return nil, toolError(err)
					}
					return toolResult(result)
				})
		},
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}
