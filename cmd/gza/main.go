// Command gza is the standalone driver for the embeddable scripting runtime:
// run a .gza script file, or drop into an interactive shell. Structured the
// way the teacher's cmd/hey/main.go lays out its urfave/cli/v3 Command —
// global flags plus an Action — rather than hey's multi-subcommand tree,
// since gza has no package-manager/fpm-style subcommands to offer.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/wudi/gza/engine"
	"github.com/wudi/gza/stdlib"
	"github.com/wudi/gza/values"
	"github.com/wudi/gza/vm"
	"github.com/wudi/gza/version"
)

func main() {
	app := &cli.Command{
		Name:  "gza",
		Usage: "an embeddable scripting runtime",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "i",
				Aliases: []string{"interactive"},
				Usage:   "run an interactive shell (REPL)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML file of sandbox limits (engine.Config options)",
			},
			&cli.BoolFlag{
				Name:  "disasm",
				Usage: "print the compiled instruction stream instead of running it",
			},
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "show version",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gza: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("version") {
		fmt.Println(version.Version())
		return nil
	}

	cfg := engine.DefaultConfig()
	if path := cmd.String("config"); path != "" {
		loaded, err := loadConfig(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	eng := engine.Create(cfg)
	defer eng.Close()
	eng.RegisterHelpers(stdlib.Install)

	if cmd.Bool("i") {
		return runREPL(eng)
	}

	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("usage: gza [flags] <script.gza>")
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	if cmd.Bool("disasm") {
		script, err := eng.LoadScript(string(src))
		if err != nil {
			return reportError(eng, err)
		}
		fmt.Println(script.Disassemble())
		return nil
	}

	result, err := eng.RunSource(string(src))
	if err != nil {
		return reportError(eng, err)
	}
	if !result.IsNil() {
		fmt.Println(result.ToDisplayString())
	}
	return nil
}

func loadConfig(path string) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// reportError prints a diagnostic for a failed Run. OutOfMemory and
// MemoryLimitExceeded additionally get a memory-context block: how much was
// charged against the Engine's limiter at the moment it tripped (rendered
// with humanize.Bytes for an operator-facing diagnostic instead of a raw
// integer), what's still retained in the global namespace, and a
// remediation hint.
func reportError(eng *engine.Engine, err error) error {
	fmt.Fprintf(os.Stderr, "gza: %v\n", err)

	switch err.(type) {
	case *vm.OutOfMemory, *vm.MemoryLimitExceeded:
		mem := eng.Memory()
		fmt.Fprintf(os.Stderr, "memory context: engine=%s used=%s limit=%s\n",
			eng.ID, humanize.Bytes(uint64(mem.Used())), humanize.Bytes(uint64(mem.Limit())))
		reportGlobals(eng)
		fmt.Fprintln(os.Stderr, "hint: raise memory_limit_bytes, enable use_arena to bulk-reclaim ephemeral strings at teardown, or check for globals holding arrays/tables with a refcount that never drops to zero (a reference cycle).")
	}
	return err
}

// reportGlobals lists every retained global with enough detail to spot a
// leak: its kind, its length when it's an array or table, and its refcount
// when it's one of the manually-refcounted aggregates.
func reportGlobals(eng *engine.Engine) {
	globals := eng.Globals()
	if len(globals) == 0 {
		return
	}
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "globals:")
	for _, name := range names {
		v := globals[name]
		switch agg := v.Agg.(type) {
		case *values.Array:
			fmt.Fprintf(os.Stderr, "  %s: array len=%d refcount=%d\n", name, agg.Len(), agg.RefCount())
		case *values.Table:
			fmt.Fprintf(os.Stderr, "  %s: table len=%d refcount=%d\n", name, len(agg.Keys()), agg.RefCount())
		case *values.Function:
			fmt.Fprintf(os.Stderr, "  %s: function refcount=%d\n", name, agg.RefCount())
		default:
			fmt.Fprintf(os.Stderr, "  %s: %s\n", name, v.TypeName())
		}
	}
}
