// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "calab",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(ctx context.Context, args []string) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "tune",
				Run: func(ctx context.Context, args []string) error {
					called = "tune"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"tune"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "tune" {
		t.Errorf("dispatched to %q, want %q", called, "tune")
	}
}

func TestCommand_Execute_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")

	var got any
	root := &Command{
		Name: "calab",
		Subcommands: []*Command{{
			Name: "probe",
			Run: func(ctx context.Context, args []string) error {
				got = ctx.Value(key{})
				return nil
			},
		}},
	}
	if err := root.Execute(ctx, []string{"probe"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got != "marker" {
		t.Errorf("context value = %v, want marker", got)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var port int
	var path string

	command := &Command{
		Name: "tune",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tune", pflag.ContinueOnError)
			flagSet.IntVar(&port, "port", 0, "bridge port")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				path = args[0]
			}
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--port", "8765", "traces.npy"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if port != 8765 {
		t.Errorf("port = %d, want 8765", port)
	}
	if path != "traces.npy" {
		t.Errorf("path = %q, want %q", path, "traces.npy")
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "tune",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tune", pflag.ContinueOnError)
			flagSet.Bool("no-browser", false, "do not open a browser")
			flagSet.String("app-url", "", "tuning app URL")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--no-brwoser"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "did you mean --no-browser") {
		t.Errorf("error = %q, want suggestion for '--no-browser'", errStr)
	}
	if !strings.Contains(errStr, "no-brwoser") {
		t.Errorf("error = %q, should mention the bad flag", errStr)
	}
	if !strings.Contains(errStr, "--help") {
		t.Errorf("error = %q, should point to --help", errStr)
	}
}

func TestCommand_Execute_UnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "tune",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tune", pflag.ContinueOnError)
			flagSet.Bool("no-browser", false, "do not open a browser")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
	if !strings.Contains(err.Error(), "--help") {
		t.Errorf("error = %q, should point to --help", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "calab",
		Subcommands: []*Command{
			{Name: "tune"},
			{Name: "kernel"},
			{Name: "version"},
		},
	}

	err := root.Execute(context.Background(), []string{"kernal"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), "did you mean \"kernel\"") {
		t.Errorf("error = %q, want suggestion for 'kernel'", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandNoSuggestion(t *testing.T) {
	root := &Command{
		Name: "calab",
		Subcommands: []*Command{
			{Name: "tune"},
			{Name: "kernel"},
		},
	}

	err := root.Execute(context.Background(), []string{"zzzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not contain suggestion for distant input", err.Error())
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			var buffer bytes.Buffer
			root := &Command{
				Name:       "calab",
				Summary:    "Calcium imaging analysis tools",
				HelpOutput: &buffer,
				Subcommands: []*Command{
					{Name: "tune", Summary: "Tune parameters in the browser"},
				},
			}

			if err := root.Execute(context.Background(), []string{helpArg}); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
			if !strings.Contains(buffer.String(), "Tune parameters in the browser") {
				t.Errorf("help output = %q, want subcommand listing", buffer.String())
			}
		})
	}
}

func TestCommand_Execute_SubcommandHelpInheritsOutput(t *testing.T) {
	var buffer bytes.Buffer
	ran := false
	root := &Command{
		Name:       "calab",
		HelpOutput: &buffer,
		Subcommands: []*Command{{
			Name:    "kernel",
			Summary: "Print kernel quantities",
			Flags: func() *pflag.FlagSet {
				flagSet := pflag.NewFlagSet("kernel", pflag.ContinueOnError)
				flagSet.Float64("fs", 0, "sampling rate in Hz")
				return flagSet
			},
			Run: func(ctx context.Context, args []string) error {
				ran = true
				return nil
			},
		}},
	}

	if err := root.Execute(context.Background(), []string{"kernel", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if ran {
		t.Error("Run was called for --help")
	}
	output := buffer.String()
	if !strings.Contains(output, "calab kernel [flags]") || !strings.Contains(output, "--fs") {
		t.Errorf("help output = %q, want kernel usage and flags", output)
	}
}

func TestCommand_Execute_NoArgsShowsHelp(t *testing.T) {
	root := &Command{
		Name:       "calab",
		HelpOutput: &bytes.Buffer{},
		Subcommands: []*Command{
			{Name: "tune", Summary: "Tune parameters in the browser"},
		},
	}

	err := root.Execute(context.Background(), []string{})
	if err == nil {
		t.Fatal("Execute() = nil, want error for missing subcommand")
	}
	if !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %q, want 'subcommand required'", err.Error())
	}
}

func TestCommand_Execute_RunErrorPropagates(t *testing.T) {
	root := &Command{
		Name: "calab",
		Subcommands: []*Command{{
			Name: "tune",
			Run: func(ctx context.Context, args []string) error {
				return &ExitError{Code: 1}
			},
		}},
	}

	err := root.Execute(context.Background(), []string{"tune"})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("Execute() error = %v, want ExitError with code 1", err)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	command := &Command{
		Name:        "calab",
		Description: "Calcium imaging analysis tools.",
		Subcommands: []*Command{
			{Name: "tune", Summary: "Tune deconvolution parameters in the browser"},
			{Name: "info", Summary: "Describe a traces or export file"},
			{Name: "version", Summary: "Print version information"},
		},
		Examples: []Example{
			{
				Description: "Tune parameters for a recording",
				Command:     "calab tune traces.npy --fs 30",
			},
			{
				Description: "Inspect an exported parameter file",
				Command:     "calab info catune-params.json",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"Calcium imaging analysis tools.",
		"Usage:",
		"calab <command> [flags]",
		"Commands:",
		"tune",
		"Tune deconvolution parameters in the browser",
		"info",
		"Describe a traces or export file",
		"Examples:",
		"calab tune traces.npy --fs 30",
		"calab info catune-params.json",
		"Run 'calab <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_PrintHelp_WithFlags(t *testing.T) {
	command := &Command{
		Name:    "tune",
		Summary: "Tune deconvolution parameters in the browser",
		Usage:   "calab tune <traces.npy> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tune", pflag.ContinueOnError)
			flagSet.Int("port", 0, "bridge port (0 picks a free port)")
			flagSet.Bool("no-browser", false, "print the URL instead of opening a browser")
			return flagSet
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"calab tune <traces.npy> [flags]",
		"Flags:",
		"--port",
		"--no-browser",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_FullName(t *testing.T) {
	root := &Command{Name: "calab"}
	tune := &Command{Name: "tune", parent: root}

	if got := root.fullName(); got != "calab" {
		t.Errorf("root.fullName() = %q, want %q", got, "calab")
	}
	if got := tune.fullName(); got != "calab tune" {
		t.Errorf("tune.fullName() = %q, want %q", got, "calab tune")
	}
}
