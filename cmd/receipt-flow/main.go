package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-workflow/internal/remote"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout, os.Stderr)
	if err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("RECEIPT_FLOW")); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
			os.Exit(0)
		}
		if errors.Is(err, ff.ErrNoExec) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// config holds the root flags shared by every subcommand
type config struct {
	baseURL    *string
	timeout    *time.Duration
	noProgress *bool
	verbose    *bool
}

func (c config) client() (*remote.Client, error) {
	if *c.verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	return remote.NewClientWithHTTP(*c.baseURL, &http.Client{Timeout: *c.timeout})
}

func newRootCommand(stdout, stderr io.Writer) *ff.Command {
	fs := ff.NewFlagSet("receipt-flow")
	cfg := config{
		baseURL:    fs.StringLong("base-url", "http://localhost:8000", "Receipt service base URL"),
		timeout:    fs.DurationLong("timeout", 60*time.Second, "Timeout for each request"),
		noProgress: fs.BoolLong("no-progress", "Disable the upload progress bar"),
		verbose:    fs.BoolLong("verbose", "Log every request"),
	}
	fs.BoolLong("version", "Show version information")

	upload := &ff.Command{
		Name:      "upload",
		Usage:     "receipt-flow upload [FLAGS] <file.pdf>",
		ShortHelp: "upload, validate and process a receipt",
		Flags:     ff.NewFlagSet("upload").SetParent(fs),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("upload takes exactly one file, got %d", len(args))
			}
			client, err := cfg.client()
			if err != nil {
				return err
			}
			var progress io.Writer
			if !*cfg.noProgress {
				progress = stderr
			}
			return runUpload(ctx, client, args[0], stdout, progress)
		},
	}

	list := &ff.Command{
		Name:      "list",
		Usage:     "receipt-flow list [FLAGS]",
		ShortHelp: "list processed receipts",
		Flags:     ff.NewFlagSet("list").SetParent(fs),
		Exec: func(ctx context.Context, args []string) error {
			client, err := cfg.client()
			if err != nil {
				return err
			}
			return runList(ctx, client, stdout)
		},
	}

	get := &ff.Command{
		Name:      "get",
		Usage:     "receipt-flow get [FLAGS] <id>",
		ShortHelp: "show one receipt",
		Flags:     ff.NewFlagSet("get").SetParent(fs),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("get takes exactly one receipt id, got %d", len(args))
			}
			client, err := cfg.client()
			if err != nil {
				return err
			}
			return runGet(ctx, client, args[0], stdout)
		},
	}

	return &ff.Command{
		Name:        "receipt-flow",
		Usage:       "receipt-flow [FLAGS] <SUBCOMMAND>",
		ShortHelp:   "drive receipts through the receipt service",
		Flags:       fs,
		Subcommands: []*ff.Command{upload, list, get},
	}
}
