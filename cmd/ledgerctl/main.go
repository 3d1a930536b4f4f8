package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"github.com/odyssey-erp/odyssey-books/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	top := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	top.SetOutput(stderr)
	commander := subcommands.NewCommander(top, "ledgerctl")
	commander.Output = stdout
	commander.Error = stderr

	env := &env{stdout: stdout, stderr: stderr, config: app.LoadConfig}
	commander.Register(commander.HelpCommand(), "")
	commander.Register(&migrateCmd{env: env}, "schema")
	commander.Register(&companyCmd{env: env}, "tenants")
	commander.Register(&apikeyCmd{env: env}, "tenants")
	commander.Register(&jobsCmd{env: env}, "jobs")

	if err := top.Parse(args); err != nil {
		return int(subcommands.ExitUsageError)
	}
	return int(commander.Execute(ctx))
}
