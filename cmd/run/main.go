package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/script-bridge/bridge"
	"github.com/wippyai/script-bridge/engine"
	"github.com/wippyai/script-bridge/engine/gojaengine"
	"github.com/wippyai/script-bridge/engine/luaengine"
	"github.com/wippyai/script-bridge/marshal"
	"github.com/wippyai/script-bridge/values"
)

func main() {
	var (
		engineName  = flag.String("engine", "goja", "Script engine (goja or lua)")
		file        = flag.String("file", "", "Script file to run")
		src         = flag.String("eval", "", "Inline source to evaluate")
		interactive = flag.Bool("i", false, "Interactive REPL")
		verbose     = flag.Bool("v", false, "Verbose bridge logging")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		engine.SetLogger(logger)
	}

	if *interactive {
		if err := runInteractive(*engineName); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *file == "" && *src == "" {
		fmt.Fprintln(os.Stderr, "Usage: run [-engine goja|lua] -file <script>")
		fmt.Fprintln(os.Stderr, "       run [-engine goja|lua] -eval <source>")
		fmt.Fprintln(os.Stderr, "       run [-engine goja|lua] -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(*engineName, *file, *src); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newEngine(name string) (engine.Engine, error) {
	switch name {
	case "goja", "js":
		return gojaengine.New(gojaengine.WithConsole()), nil
	case "lua":
		return luaengine.New(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want goja or lua)", name)
	}
}

func run(engineName, file, src string) error {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		src = string(data)
	}

	eng, err := newEngine(engineName)
	if err != nil {
		return err
	}
	c := bridge.New(eng)
	defer c.Close()

	result, err := bridge.Evaluate[any](c, src)
	if err != nil {
		return err
	}
	if err := c.DrainPendingAsyncQueue(); err != nil {
		return err
	}

	if result != nil {
		fmt.Println(formatResult(c, result))
	}
	return nil
}

// formatResult renders an evaluation result for a terminal. Opaque script
// values print as JSON when the engine can encode them.
func formatResult(c *bridge.Context, v any) string {
	switch rv := v.(type) {
	case nil:
		return ""
	case *marshal.ScriptRef:
		if text, err := c.Engine().EncodeJSON(rv.Value()); err == nil {
			return text
		}
		return "[object]"
	case values.JSON:
		return string(rv)
	case string:
		return rv
	default:
		return fmt.Sprintf("%v", v)
	}
}
