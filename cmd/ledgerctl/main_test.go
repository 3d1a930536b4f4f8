package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-books/internal/app"
)

func TestRunRejectsUnknownCommands(t *testing.T) {
	for _, args := range [][]string{nil, {"ledger"}, {"-bogus"}} {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), args, &stdout, &stderr)
		assert.Equal(t, int(subcommands.ExitUsageError), code, args)
		assert.Empty(t, stdout.String(), args)
	}
}

func TestCommandsValidateVerbsBeforeLoadingConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	loaded := false
	e := &env{stdout: &stdout, stderr: &stderr, config: func() (*app.Config, error) {
		loaded = true
		return nil, errors.New("unreachable")
	}}

	cases := []struct {
		cmd  subcommands.Command
		args []string
		want string
	}{
		{&migrateCmd{env: e}, []string{"sideways"}, "ledgerctl migrate up|down"},
		{&companyCmd{env: e}, []string{"delete"}, "ledgerctl company create"},
		{&apikeyCmd{env: e}, nil, "ledgerctl apikey create"},
		{&jobsCmd{env: e}, []string{"purge"}, "ledgerctl jobs stats"},
	}
	for _, tc := range cases {
		stderr.Reset()
		f := flag.NewFlagSet(tc.cmd.Name(), flag.ContinueOnError)
		f.SetOutput(&stderr)
		tc.cmd.SetFlags(f)
		if err := f.Parse(tc.args); err != nil {
			t.Fatalf("parse %v: %v", tc.args, err)
		}
		status := tc.cmd.Execute(context.Background(), f)
		assert.Equal(t, subcommands.ExitUsageError, status, tc.cmd.Name())
		assert.Contains(t, stderr.String(), tc.want, tc.cmd.Name())
	}
	assert.False(t, loaded)
}

func TestCommandsReportConfigErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	e := &env{stdout: &stdout, stderr: &stderr, config: func() (*app.Config, error) {
		return nil, errors.New("PG_DSN must be provided")
	}}
	f := flag.NewFlagSet("migrate", flag.ContinueOnError)
	_ = f.Parse([]string{"up"})

	status := (&migrateCmd{env: e}).Execute(context.Background(), f)
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, stderr.String(), "load config: PG_DSN must be provided")
}
