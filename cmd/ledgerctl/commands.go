package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/subcommands"

	"github.com/odyssey-erp/odyssey-books/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-books/internal/app"
	"github.com/odyssey-erp/odyssey-books/internal/auth"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
)

// env carries what every command shares. Configuration is loaded lazily so
// usage errors never need a valid environment.
type env struct {
	stdout io.Writer
	stderr io.Writer
	config func() (*app.Config, error)
}

func (e *env) output(jsonOutput bool) cli.Output {
	return cli.Output{JSONOutput: jsonOutput, Stdout: e.stdout, Stderr: e.stderr}
}

func (e *env) load() (*app.Config, bool) {
	cfg, err := e.config()
	if err != nil {
		_, _ = fmt.Fprintf(e.stderr, "load config: %v\n", err)
		return nil, false
	}
	return cfg, true
}

func (e *env) usage(f *flag.FlagSet, usage string) subcommands.ExitStatus {
	_, _ = fmt.Fprint(e.stderr, usage)
	f.PrintDefaults()
	return subcommands.ExitUsageError
}

func (e *env) withAdmin(ctx context.Context, cfg *app.Config, fn func(*cli.AdminCLI) int) subcommands.ExitStatus {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := db.New(connectCtx, cfg.PGDSN, cfg.PGLockTimeout)
	if err != nil {
		slog.New(slog.NewTextHandler(e.stderr, nil)).Error("connect database", slog.Any("error", err))
		return subcommands.ExitFailure
	}
	defer pool.Close()
	return subcommands.ExitStatus(fn(cli.NewAdminCLI(auth.NewService(auth.NewRepository(pool)))))
}

type migrateCmd struct {
	env *env
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply or roll back the embedded schema migrations" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate up|down

  up applies every pending migration; down rolls back the latest one.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 || (f.Arg(0) != "up" && f.Arg(0) != "down") {
		return c.env.usage(f, c.Usage())
	}
	cfg, ok := c.env.load()
	if !ok {
		return subcommands.ExitFailure
	}
	return subcommands.ExitStatus(cli.MigrateCommand(cli.EmbeddedMigrations, cfg.PGDSN, f.Arg(0), c.env.output(false)))
}

type companyCmd struct {
	env        *env
	name       string
	jsonOutput bool
}

func (*companyCmd) Name() string     { return "company" }
func (*companyCmd) Synopsis() string { return "provision a company" }
func (*companyCmd) Usage() string {
	return `ledgerctl company create -name NAME [-json]
`
}

func (c *companyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "company name")
	f.BoolVar(&c.jsonOutput, "json", false, "print JSON")
}

func (c *companyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 || f.Arg(0) != "create" {
		return c.env.usage(f, c.Usage())
	}
	cfg, ok := c.env.load()
	if !ok {
		return subcommands.ExitFailure
	}
	return c.env.withAdmin(ctx, cfg, func(admin *cli.AdminCLI) int {
		return admin.CompanyCreateCommand(ctx, c.name, c.env.output(c.jsonOutput))
	})
}

type apikeyCmd struct {
	env        *env
	companyID  int64
	label      string
	jsonOutput bool
}

func (*apikeyCmd) Name() string     { return "apikey" }
func (*apikeyCmd) Synopsis() string { return "mint an API key for a company" }
func (*apikeyCmd) Usage() string {
	return `ledgerctl apikey create -company ID -label LABEL [-json]

  The token is printed once. Only its bcrypt hash is stored.
`
}

func (c *apikeyCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.companyID, "company", 0, "company id")
	f.StringVar(&c.label, "label", "", "key label")
	f.BoolVar(&c.jsonOutput, "json", false, "print JSON")
}

func (c *apikeyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 || f.Arg(0) != "create" {
		return c.env.usage(f, c.Usage())
	}
	cfg, ok := c.env.load()
	if !ok {
		return subcommands.ExitFailure
	}
	return c.env.withAdmin(ctx, cfg, func(admin *cli.AdminCLI) int {
		return admin.APIKeyCreateCommand(ctx, c.companyID, c.label, c.env.output(c.jsonOutput))
	})
}

type jobsCmd struct {
	env       *env
	job       string
	companyID int64
	retention time.Duration
}

func (*jobsCmd) Name() string     { return "jobs" }
func (*jobsCmd) Synopsis() string { return "trigger background jobs or show queue stats" }
func (*jobsCmd) Usage() string {
	return `ledgerctl jobs trigger -job gl-integrity|idempotency-cleanup [-company ID] [-retention DUR]
ledgerctl jobs stats
`
}

func (c *jobsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.job, "job", "", "job name")
	f.Int64Var(&c.companyID, "company", 0, "company to check (integrity only, 0 = all)")
	f.DurationVar(&c.retention, "retention", 0, "key retention (cleanup only, defaults to IDEMPOTENCY_RETENTION)")
}

func (c *jobsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 || (f.Arg(0) != "trigger" && f.Arg(0) != "stats") {
		return c.env.usage(f, c.Usage())
	}
	cfg, ok := c.env.load()
	if !ok {
		return subcommands.ExitFailure
	}
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() { _ = jobsCLI.Close() }()

	if f.Arg(0) == "stats" {
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(c.env.stderr, "jobs stats: %v\n", err)
			return subcommands.ExitFailure
		}
		_, _ = fmt.Fprintf(c.env.stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return subcommands.ExitSuccess
	}

	retention := c.retention
	if retention <= 0 {
		retention = cfg.IdempotencyRetention
	}
	info, err := jobsCLI.Trigger(ctx, c.job, cli.TriggerOptions{CompanyID: c.companyID, Retention: retention})
	if err != nil {
		_, _ = fmt.Fprintf(c.env.stderr, "jobs trigger: %v\n", err)
		return subcommands.ExitFailure
	}
	_, _ = fmt.Fprintf(c.env.stdout, "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	return subcommands.ExitSuccess
}
