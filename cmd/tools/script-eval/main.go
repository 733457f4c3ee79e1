package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/atisu/evaluator/internal/eval"
	"github.com/atisu/evaluator/internal/runner"
)

func main() {
	// This binary doubles as its own sandbox worker.
	runner.MaybeRunWorker()

	s := server.NewMCPServer("evaluator-script-eval", "0.1.0")

	s.AddTool(mcp.Tool{
		Name: "script_eval",
		Description: "Evaluate a restricted script against named inputs and return the requested " +
			"output bindings. Runs in an isolated worker process with a wall-clock deadline. " +
			"The language is a Starlark subset: assignments, if/for/while, arithmetic; no " +
			"function definitions, comprehensions, or print.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Script to evaluate",
				},
				"inputs": map[string]any{
					"type":        "object",
					"description": "Input bindings visible to the script (optional)",
				},
				"outputs": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Names of bindings to return after evaluation",
				},
				"timeout_seconds": map[string]any{
					"type":        "number",
					"description": "Evaluation deadline in seconds (default 0.5)",
				},
			},
			Required: []string{"code"},
		},
	}, handleScriptEval)

	if err := server.ServeStdio(s); err != nil {
		fmt.Printf("server error: %v\n", err)
	}
}

func handleScriptEval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	code, _ := args["code"].(string)
	if code == "" {
		return errResult("error: 'code' is required"), nil
	}
	inputs, _ := args["inputs"].(map[string]any)

	var outputs []string
	if rawOutputs, ok := args["outputs"].([]any); ok {
		for _, o := range rawOutputs {
			if name, ok := o.(string); ok {
				outputs = append(outputs, name)
			}
		}
	}

	timeout := eval.DefaultTimeout
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs * float64(time.Second))
	}

	e := eval.New(eval.Options{Timeout: timeout})
	out, err := e.Evaluate(ctx, code, inputs, outputs)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	rendered, err := json.Marshal(out)
	if err != nil {
		return errResult(fmt.Sprintf("error: rendering output: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(rendered)}},
	}, nil
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
