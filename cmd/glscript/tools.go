package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nerrad567/gray-logic-script/internal/auth"
	"github.com/nerrad567/gray-logic-script/internal/event"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-script/internal/runtime"
	"github.com/nerrad567/gray-logic-script/internal/script/eval"
	"github.com/nerrad567/gray-logic-script/internal/script/parser"
	"github.com/nerrad567/gray-logic-script/internal/state"
	"github.com/nerrad567/gray-logic-script/internal/timespec"
	"github.com/nerrad567/gray-logic-script/internal/trigger"
)

const defaultNextCount = 5

// ─── check ──────────────────────────────────────────────────────────

func newCheckCmd() *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Parse scripts and report syntax errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				src, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading %s: %w", path, err)
				}
				tree, err := parser.Parse(string(src), path)
				if err != nil {
					fmt.Fprintln(out, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "%s: ok\n", path)
				if dump {
					spew.Fdump(out, tree)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scripts failed to parse", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "Print the syntax tree of each script")
	return cmd
}

// ─── eval ───────────────────────────────────────────────────────────

func newEvalCmd() *cobra.Command {
	var (
		sets     []string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "eval EXPR|FILE",
		Short: "Evaluate source against an in-memory state store and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, filename := args[0], "<eval>"
			if b, err := os.ReadFile(args[0]); err == nil {
				src, filename = string(b), args[0]
			}

			log := logging.NewWithWriter(config.LoggingConfig{Level: logLevel, Format: "text"}, version, cmd.ErrOrStderr())
			result, err := evalSource(cmd.Context(), src, filename, sets, log)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Seed a state as entity=value (repeatable)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level for script output")
	return cmd
}

// evalSource runs src with the host functions of a real engine, minus
// persistence and transport, and returns the repr of its last expression.
func evalSource(ctx context.Context, src, filename string, sets []string, log *logging.Logger) (string, error) {
	tree, err := parser.Parse(src, filename)
	if err != nil {
		return "", err
	}

	store := state.NewStore()
	notifier := state.NewNotifier()
	store.AddListener(notifier)
	for _, kv := range sets {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return "", fmt.Errorf("--set %q: want entity=value", kv)
		}
		if err := store.Set(strings.TrimSpace(name), value, nil); err != nil {
			return "", err
		}
	}

	bus := event.NewBus()
	rt := runtime.New(runtime.Config{Store: store, Bus: bus, Logger: log.Logger})
	defer rt.Close()
	env := &trigger.Env{Runtime: rt, Notifier: notifier, Bus: bus, Logger: log.Logger}
	env.RegisterHostFunctions()

	c := rt.NewContext(ctx, "eval", filename, eval.NewSymTable())
	v := c.Eval(tree, nil)
	if e := c.Err(); e != nil {
		return "", e
	}
	return eval.Repr(v), nil
}

// ─── next ───────────────────────────────────────────────────────────

func newNextCmd() *cobra.Command {
	var (
		nowFlag    string
		count      int
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "next SPEC...",
		Short: "Print the upcoming instants of time trigger specs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, specs []string) error {
			for _, s := range specs {
				if err := timespec.ValidateTrigger(s); err != nil {
					return err
				}
			}

			var sun timespec.SunProvider
			loc := time.Local
			if configPath != "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				sun = sunProvider(cfg)
				loc = cfg.Location()
			}

			now := time.Now().In(loc)
			if nowFlag != "" {
				t, err := time.Parse(time.RFC3339, nowFlag)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				now = t
			}

			for _, t := range upcoming(specs, now, sun, count) {
				fmt.Fprintln(cmd.OutOrStdout(), t.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&nowFlag, "now", "", "Start instant (RFC 3339); default is the current time")
	cmd.Flags().IntVarP(&count, "count", "n", defaultNextCount, "Number of instants to print")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file supplying timezone and location")
	return cmd
}

// upcoming returns up to count successive fire times after now.
func upcoming(specs []string, now time.Time, sun timespec.SunProvider, count int) []time.Time {
	var out []time.Time
	for range count {
		next, ok := timespec.Next(specs, now, sun)
		if !ok {
			break
		}
		out = append(out, next)
		now = next
	}
	return out
}

// ─── hash-password ──────────────────────────────────────────────────

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password and print its Argon2id hash for security.admin.password_hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("empty password")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// readPassword prompts without echo on a terminal and otherwise reads
// one line.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: fd fits int
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd())) //nolint:gosec // G115: fd fits int
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
