package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/cairnmem/cairn/internal/config"
	"github.com/cairnmem/cairn/internal/errors"
	"github.com/cairnmem/cairn/internal/store"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(st *store.Store, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "cairn",
		Usage:   "Working-memory GC for coding agents",
		Version: Version,
		Commands: []*cli.Command{
			storeCmd(st),
			getCmd(st),
			stashCmd(st),
			searchCmd(st),
			deleteCmd(st),
			sweepCmd(st),
			rebuildCmd(st),
			projectsCmd(st),
			statsCmd(st),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// storeCmd creates the store command.
func storeCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Store a context segment (reads text from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Value: "default", Usage: "Project id"},
			&cli.StringFlag{Name: "id", Usage: "Segment id (optional; generated when omitted)"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: "note", Usage: "Segment type: message|code|log|note|decision|summary"},
			&cli.StringFlag{Name: "task", Usage: "Task id"},
			&cli.BoolFlag{Name: "pinned", Usage: "Protect the segment from GC"},
			&cli.StringFlag{Name: "file", Usage: "Linked source file path"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "topic", Usage: "Topic id"},
			&cli.StringFlag{Name: "refs", Usage: "Comma-separated referenced segment ids"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewValidation("segment text must be piped via stdin"))
			}
			text, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if text == "" {
				return outputError(errors.NewValidation("text is required"))
			}

			output, err := st.Put(c.Context, store.PutInput{
				ProjectID: c.String("project"),
				SegmentID: c.String("id"),
				Type:      c.String("type"),
				Text:      text,
				TaskID:    c.String("task"),
				Pinned:    c.Bool("pinned"),
				FilePath:  c.String("file"),
				Tags:      splitList(c.String("tags")),
				TopicID:   c.String("topic"),
				Refs:      splitList(c.String("refs")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// getCmd creates the get command.
func getCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Fetch a segment by id",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Value: "default", Usage: "Project id"},
			&cli.BoolFlag{Name: "no-text", Usage: "Exclude text from output"},
		},
		Action: func(c *cli.Context) error {
			input := store.GetInput{
				ProjectID: c.String("project"),
				SegmentID: c.Args().First(),
			}
			if c.Bool("no-text") {
				includeText := false
				input.IncludeText = &includeText
			}

			output, err := st.Get(c.Context, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// stashCmd creates the stash command.
func stashCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "stash",
		Usage:     "Move segments to the searchable stash",
		ArgsUsage: "<id> [id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Value: "default", Usage: "Project id"},
		},
		Action: func(c *cli.Context) error {
			output, err := st.Stash(c.Context, store.StashInput{
				ProjectID:  c.String("project"),
				SegmentIDs: c.Args().Slice(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the stashed tier",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Value: "default", Usage: "Project id"},
			&cli.StringFlag{Name: "file", Usage: "Filter by linked file path"},
			&cli.StringFlag{Name: "task", Usage: "Filter by task id"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Filter by segment type"},
			&cli.StringFlag{Name: "tag", Usage: "Filter by tag"},
			&cli.StringFlag{Name: "topic", Usage: "Filter by topic id"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum hits to return"},
			&cli.BoolFlag{Name: "restore", Usage: "Move hits back to the working tier"},
			&cli.BoolFlag{Name: "include-text", Usage: "Include full text in output"},
		},
		Action: func(c *cli.Context) error {
			output, err := st.Search(c.Context, store.SearchInput{
				ProjectID:   c.String("project"),
				Query:       strings.Join(c.Args().Slice(), " "),
				FilePath:    c.String("file"),
				TaskID:      c.String("task"),
				Type:        c.String("type"),
				Tag:         c.String("tag"),
				TopicID:     c.String("topic"),
				Limit:       c.Int("limit"),
				Restore:     c.Bool("restore"),
				IncludeText: c.Bool("include-text"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Permanently delete segments from any tier",
		ArgsUsage: "<id> [id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Value: "default", Usage: "Project id"},
		},
		Action: func(c *cli.Context) error {
			output, err := st.Delete(c.Context, store.DeleteInput{
				ProjectID:  c.String("project"),
				SegmentIDs: c.Args().Slice(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// sweepCmd creates the sweep command.
func sweepCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run a full GC cycle and evict unreachable segments",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Value: "default", Usage: "Project id"},
			&cli.StringFlag{Name: "task", Usage: "Current task id (its segments become roots)"},
			&cli.StringFlag{Name: "files", Usage: "Comma-separated active file paths (roots)"},
			&cli.StringFlag{Name: "roots", Usage: "Comma-separated extra root segment ids"},
			&cli.IntFlag{Name: "target", Usage: "Tokens to free (0 = down to the soft threshold)"},
		},
		Action: func(c *cli.Context) error {
			output, err := st.Sweep(c.Context, store.SweepInput{
				ProjectID:    c.String("project"),
				TaskID:       c.String("task"),
				ActiveFiles:  splitList(c.String("files")),
				ExtraRoots:   splitList(c.String("roots")),
				TargetTokens: c.Int("target"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// rebuildCmd creates the rebuild command.
func rebuildCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Rebuild search indexes from archive shards",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "Project id (omit to rebuild all)"},
		},
		Action: func(c *cli.Context) error {
			if project := c.String("project"); project != "" {
				output, err := st.Rebuild(c.Context, project)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			output, err := st.RebuildAll(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"projects": output})
		},
	}
}

// projectsCmd creates the projects command.
func projectsCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "List all known projects",
		Action: func(c *cli.Context) error {
			output, err := st.ListProjects(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"projects": output})
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(st *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Report tier sizes and token usage for a project",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Value: "default", Usage: "Project id"},
		},
		Action: func(c *cli.Context) error {
			output, err := st.Stats(c.Context, c.String("project"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cairnErr *errors.CairnError
	if stderrors.As(err, &cairnErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cairnErr.Code, cairnErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// splitList splits a comma-separated string into a trimmed slice.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
