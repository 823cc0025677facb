// Command acad-mcp runs an MCP server that drives a local AutoCAD instance
// over COM automation.
//
// The server speaks MCP on stdio by default, or over streamable HTTP when
// started with --http. Each process owns one automation session: a resolved
// AutoCAD endpoint, its output streams and a JSONL audit trail under the
// session log directory.
package main

import (
	"log"
	"os"

	"github.com/acadmcp/acadmcp/service"
)

func main() {
	if err := service.Run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
