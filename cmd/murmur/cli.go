package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/murmur/internal/config"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/export"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/pipeline"
	"github.com/hpungsan/murmur/internal/session"
	"github.com/hpungsan/murmur/internal/store"
	"github.com/hpungsan/murmur/internal/web"
)

// appEnv bundles the wired components the CLI commands operate on.
type appEnv struct {
	store  *store.Store
	coord  *session.Coordinator
	cfg    *config.Config
	logger *slog.Logger
}

// noteSummary is the list/search output shape.
type noteSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
	WordCount int    `json:"wordCount"`
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "murmur",
		Usage:   "Local voice note studio",
		Version: Version,
		Commands: []*cli.Command{
			newCmd(env),
			recordCmd(env),
			ingestCmd(env),
			listCmd(env),
			searchCmd(env),
			showCmd(env),
			deleteCmd(env),
			purgeCmd(env),
			exportCmd(env),
			themeCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newCmd creates the new command.
func newCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Start a fresh note, abandoning any in-flight work",
		Action: func(c *cli.Context) error {
			n, err := env.coord.NewNote()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"id": n.ID, "timestamp": n.CreatedAt})
		},
	}
}

// recordCmd creates the record command.
func recordCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Record from the microphone, then transcribe and polish",
		Action: func(c *cli.Context) error {
			ctx := context.Background()

			if _, err := env.coord.NewNote(); err != nil {
				return outputError(err)
			}
			if err := env.coord.Record(ctx); err != nil {
				return outputError(err)
			}

			fmt.Fprintln(os.Stderr, "Recording... press Enter or Ctrl-C to stop.")

			stdinErr := make(chan error, 1)
			go func() {
				_, err := bufio.NewReader(os.Stdin).ReadString('\n')
				stdinErr <- err
			}()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case err := <-stdinErr:
				if err != nil {
					env.coord.NewNote()
					return outputError(errors.NewInternal(err))
				}
			case <-sigCh:
				fmt.Fprintln(os.Stderr)
			}

			if _, err := env.coord.StopAndProcess(ctx, statusPrinter); err != nil {
				return outputError(err)
			}
			return outputJSON(env.coord.Active())
		},
	}
}

// ingestCmd creates the ingest command.
func ingestCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Transcribe audio files into a new note",
		ArgsUsage: "<file> [file...]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("at least one audio file is required"))
			}

			files := make([]pipeline.File, 0, c.NArg())
			for _, path := range c.Args().Slice() {
				data, err := os.ReadFile(path)
				if err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("read %s: %v", path, err)))
				}
				files = append(files, pipeline.File{
					Name:     filepath.Base(path),
					Bytes:    data,
					MIMEType: mimeTypeOf(path),
				})
			}

			if _, err := env.coord.NewNote(); err != nil {
				return outputError(err)
			}
			if _, err := env.coord.Ingest(context.Background(), files, statusPrinter); err != nil {
				return outputError(err)
			}
			return outputJSON(env.coord.Active())
		},
	}
}

// listCmd creates the list command.
func listCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all notes, newest first",
		Action: func(c *cli.Context) error {
			notes := env.store.All()
			return outputJSON(map[string]any{
				"notes": summarize(notes),
				"count": len(notes),
			})
		},
	}
}

// searchCmd creates the search command.
func searchCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search notes by substring (empty query returns all)",
		ArgsUsage: "[query]",
		Action: func(c *cli.Context) error {
			matches := env.store.Search(strings.Join(c.Args().Slice(), " "))
			return outputJSON(map[string]any{
				"notes": summarize(matches),
				"count": len(matches),
			})
		},
	}
}

// showCmd creates the show command.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a note in full",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("note id is required"))
			}
			id := c.Args().First()
			n, ok := env.store.Get(id)
			if !ok {
				return outputError(errors.NewNotFound(id))
			}
			return outputJSON(n)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a note",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("note id is required"))
			}
			id := c.Args().First()
			if err := env.coord.Delete(context.Background(), id); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"deleted": true, "id": id})
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete every note",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "confirm", Usage: "Required confirmation"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("confirm") {
				return outputError(errors.NewInvalidRequest("pass --confirm to delete all notes"))
			}
			purged := env.store.Len()
			if err := env.store.Clear(context.Background()); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"purged": purged})
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a note (or all notes) to a file",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "markdown", Usage: "Export format: markdown|txt|json"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path (default: suggested filename in current directory)"},
		},
		Action: func(c *cli.Context) error {
			format, err := export.ParseFormat(c.String("format"))
			if err != nil {
				return outputError(err)
			}

			var (
				data []byte
				name string
			)
			if c.NArg() > 0 {
				id := c.Args().First()
				n, ok := env.store.Get(id)
				if !ok {
					return outputError(errors.NewNotFound(id))
				}
				data, name, err = export.Render(n, format)
			} else {
				data, name, err = export.RenderAll(env.store.All(), format)
			}
			if err != nil {
				return outputError(err)
			}

			path := c.String("output")
			if path == "" {
				path = name
			}
			if err := os.WriteFile(path, data, 0600); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(map[string]any{"path": path, "bytes": len(data)})
		},
	}
}

// themeCmd creates the theme command.
func themeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "Show or set the web UI theme",
		ArgsUsage: "[light|dark]",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			if c.NArg() == 0 {
				theme := env.store.Theme(ctx)
				if theme == "" {
					theme = "dark"
				}
				return outputJSON(map[string]any{"theme": theme})
			}

			theme := c.Args().First()
			if theme != store.ThemeLight && theme != "dark" {
				return outputError(errors.NewInvalidRequest("theme must be \"light\" or \"dark\""))
			}
			if err := env.store.SetTheme(ctx, theme); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"theme": theme})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "Port (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg := *env.cfg
			if bind := c.String("bind"); bind != "" {
				cfg.WebBind = bind
			}
			if port := c.Int("port"); port != 0 {
				cfg.WebPort = port
			}

			srv := web.NewServer(env.store, env.coord, &cfg, env.logger, Version)
			return web.Run(srv)
		},
	}
}

// Helper functions

// summarize trims notes down to their listing fields.
func summarize(notes []note.Note) []noteSummary {
	out := make([]noteSummary, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteSummary{
			ID:        n.ID,
			Title:     n.Title,
			Timestamp: n.CreatedAt,
			WordCount: n.WordCount(),
		})
	}
	return out
}

// statusPrinter streams pipeline progress to stderr.
func statusPrinter(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if mErr, ok := err.(*errors.MurmurError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// mimeTypeOf guesses the audio MIME type from the file extension.
func mimeTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
