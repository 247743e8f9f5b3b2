package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/broady/surface/cmd/surface/internal/check"
	"github.com/broady/surface/cmd/surface/internal/gen"
	"github.com/broady/surface/cmd/surface/internal/token"
)

type CLI struct {
	Verbose bool `help:"Log debug output." short:"v"`

	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate the routing file and TypeScript bindings."`
	Check   check.Cmd  `cmd:"" help:"Fail if generated files are missing or out of date."`
	Token   token.Cmd  `cmd:"" help:"Issue a signed token for a subject."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("surface"),
		kong.Description("Generate HTTP routes and TypeScript clients from Go handler functions."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	err := kctx.Run(newLogger(cli.Verbose))
	kctx.FatalIfErrorf(err)
}
