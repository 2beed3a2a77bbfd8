// Command vibereco runs the recommendation pipeline and its offline tools
// from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ewilliams-labs/vibereco/internal/app"
	"github.com/ewilliams-labs/vibereco/internal/config"
	"github.com/ewilliams-labs/vibereco/internal/logging"
)

const usage = `usage: vibereco <command> [flags]

commands:
  run [-limit n] [-json] <query>        run the pipeline for one song
  abtest [-limit n] <query>             run the pipeline and vote blind between both orderings
  pairs [-limit n]                      pre-generate playlist pairs for the benchmark seeds
  catalog-build                         index every stored track and write the snapshot
  catalog-recommend [-k n] <title>      recommend from the stored catalog
  stats                                 print A/B test statistics
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()

	switch {
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, "vibereco:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	parse := cmd.flags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if cmd.needsArg && strings.TrimSpace(strings.Join(fs.Args(), " ")) == "" {
		return fmt.Errorf("%w: %s needs an argument", errUsage, args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	a, err := app.New(ctx, cfg, app.Options{
		Progress: func(msg string) { fmt.Fprintln(out, msg) },
		Live:     cmd.live,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, &env{app: a, args: fs.Args(), opts: parse(), in: in, out: out})
}
