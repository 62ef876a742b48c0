// Command flowgraph converts workflow definitions between the legacy tree
// form, the canonical IR and the positioned node graph.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/rendis/flowgraph/internal/codec"
	"github.com/rendis/flowgraph/internal/convert"
	"github.com/rendis/flowgraph/internal/legacy"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/flowgraph"
)

// SourceCLI tags log records of conversions started from the command line.
const SourceCLI = "cli"

// CLI is the kong grammar.
type CLI struct {
	Config    string `help:"Settings file (default ~/.flowgraph/settings.yaml)." type:"path" env:"FLOWGRAPH_CONFIG"`
	LogLevel  string `help:"Log level: debug, info, warn, error." name:"log-level"`
	LogFormat string `help:"Log format: text or json." name:"log-format"`

	ToGraph   ToGraphCmd   `cmd:"" name:"to-graph" help:"Load a legacy or canonical definition into a node graph."`
	FromGraph FromGraphCmd `cmd:"" name:"from-graph" help:"Save a node graph as canonical IR."`
	Validate  ValidateCmd  `cmd:"" help:"Validate canonical IR."`
	Sort      SortCmd      `cmd:"" help:"Print the top-level steps of an IR in execution order."`
	RoundTrip RoundTripCmd `cmd:"" name:"roundtrip" help:"Check that a node graph survives save and reload."`
	MCP       MCPCmd       `cmd:"" name:"mcp" help:"Serve the conversion tools over MCP stdio."`
	Version   VersionCmd   `cmd:"" help:"Print the version."`
}

// app is bound into every command's Run method.
type app struct {
	ctx    context.Context
	cfg    Config
	engine *flowgraph.Engine
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, "flowgraph:", err)
		stop()
		os.Exit(1)
	}
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("flowgraph"),
		kong.Description("Workflow definition conversion and layout."),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cli.Config, getenv)
	if err != nil {
		return err
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.LogFormat = cli.LogFormat
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	rt, err := newApp(ctx, cfg, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	return kctx.Run(rt)
}

func newApp(ctx context.Context, cfg Config, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(stderr, level, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	format, err := codec.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	policy, _ := legacy.PolicyByName(cfg.Flatten)
	opts := convert.DefaultOptions()
	opts.Reconstruct = cfg.Reconstruct

	eng, err := flowgraph.New(
		flowgraph.WithLogger(logger),
		flowgraph.WithFlattenPolicy(policy),
		flowgraph.WithConvertOptions(opts),
		flowgraph.WithTolerance(cfg.PositionTolerance),
		flowgraph.WithFormat(format),
	)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithIDs(ctx, uuid.New().String(), SourceCLI, "")
	logging.LogWith(ctx, logger).Debug("flowgraph starting", "version", version, "format", cfg.Format, "flatten", cfg.Flatten)

	return &app{
		ctx:    ctx,
		cfg:    cfg,
		engine: eng,
		logger: logger,
		stdin:  stdin,
		stdout: stdout,
	}, nil
}
