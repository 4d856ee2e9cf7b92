package main

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/tagline/internal/annotate"
	"github.com/hpungsan/tagline/internal/config"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/gateway"
	"github.com/hpungsan/tagline/internal/ops"
	"github.com/hpungsan/tagline/internal/sentence"
	"github.com/hpungsan/tagline/internal/tokenize"
	"github.com/hpungsan/tagline/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "tagline",
		Usage:   "Label departure and arrival spans in sentences",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				EnvVars: []string{"TAGLINE_BACKEND"},
				Usage:   "Base URL of a remote sentence store (default: local database)",
			},
		},
		Commands: []*cli.Command{
			addCmd(db),
			fetchCmd(db, cfg),
			showCmd(db, cfg),
			labelCmd(db, cfg),
			annotateCmd(db, cfg),
			deleteCmd(db),
			validityCmd(db, "validate", true),
			validityCmd(db, "invalidate", false),
			treatAllCmd(db),
			statsCmd(db),
			revalidateCmd(db),
			exportCmd(db, cfg),
			importCmd(db, cfg),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// newGateway picks the HTTP gateway when a backend URL is given on the
// command line or in config, and the local store otherwise.
func newGateway(db *sql.DB, cfg *config.Config, backend string) (annotate.Gateway, error) {
	if backend == "" && cfg != nil {
		backend = cfg.BackendURL
	}
	if backend != "" {
		return gateway.NewHTTP(backend, cfg)
	}
	if db == nil {
		return nil, errors.NewInvalidRequest("no database available")
	}
	return gateway.NewLocal(db), nil
}

func gatewayFor(c *cli.Context, db *sql.DB, cfg *config.Config) (annotate.Gateway, error) {
	return newGateway(db, cfg, c.String("backend"))
}

// addCmd creates the add command.
func addCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Store a new sentence (text from args or stdin)",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "entity", Aliases: []string{"e"}, Usage: "Initial entity start:end=LABEL (repeatable)"},
			&cli.BoolFlag{Name: "treated", Usage: "Mark as treated (defaults to validity)"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				data, err := io.ReadAll(c.App.Reader)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				text = string(data)
			}

			input := ops.CreateInput{Text: text}
			for _, raw := range c.StringSlice("entity") {
				e, err := parseAssignment(raw)
				if err != nil {
					return outputError(err)
				}
				input.Entities = append(input.Entities, e)
			}
			if c.IsSet("treated") {
				treated := c.Bool("treated")
				input.IsTreated = &treated
			}

			s, err := ops.Create(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, s)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a sentence as JSON",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			s, err := fetchArg(c, db, cfg)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, s)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print a sentence as a markdown review card",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			s, err := fetchArg(c, db, cfg)
			if err != nil {
				return outputError(err)
			}
			_, err = io.WriteString(c.App.Writer, sentence.Markdown(s))
			return err
		},
	}
}

func fetchArg(c *cli.Context, db *sql.DB, cfg *config.Config) (*sentence.Sentence, error) {
	id, err := ops.ParseID(c.Args().First())
	if err != nil {
		return nil, err
	}
	gw, err := gatewayFor(c, db, cfg)
	if err != nil {
		return nil, err
	}
	return gw.Fetch(c.Context, id)
}

// labelCmd creates the label command: a one-shot editing session.
func labelCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "label",
		Usage:     "Edit a sentence's entities and treated flag, then save",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "set", Usage: "Label a word token start:end=LABEL (repeatable)"},
			&cli.StringSliceFlag{Name: "clear", Usage: "Clear the entity at start:end (repeatable)"},
			&cli.BoolFlag{Name: "treated", Usage: "Set the treated flag (--treated=false to unset)"},
		},
		Action: func(c *cli.Context) error {
			id, err := ops.ParseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			if len(c.StringSlice("set")) == 0 && len(c.StringSlice("clear")) == 0 && !c.IsSet("treated") {
				return outputError(errors.NewInvalidRequest("nothing to do: use --set, --clear or --treated"))
			}

			gw, err := gatewayFor(c, db, cfg)
			if err != nil {
				return outputError(err)
			}
			s := annotate.NewSession(gw, id)
			defer s.Close()
			if err := s.Load(c.Context); err != nil {
				return outputError(err)
			}

			for _, raw := range c.StringSlice("clear") {
				start, end, err := parseSpan(raw)
				if err != nil {
					return outputError(err)
				}
				if err := s.ApplyLabel(start, end, sentence.LabelNone); err != nil {
					return outputError(err)
				}
			}
			for _, raw := range c.StringSlice("set") {
				e, err := parseAssignment(raw)
				if err != nil {
					return outputError(err)
				}
				if err := s.ApplyLabel(e.Start, e.End, e.Label); err != nil {
					return outputError(err)
				}
			}
			if c.IsSet("treated") {
				if err := s.SetTreated(c.Bool("treated")); err != nil {
					return outputError(err)
				}
			}

			if _, err := s.Commit(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(c, s.View())
		},
	}
}

// annotateCmd creates the interactive annotate command.
func annotateCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "annotate",
		Usage:     "Label a sentence interactively",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := ops.ParseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			gw, err := gatewayFor(c, db, cfg)
			if err != nil {
				return outputError(err)
			}

			s := annotate.NewSession(gw, id)
			defer s.Close()
			if err := s.Load(c.Context); err != nil {
				return outputError(err)
			}
			return runAnnotate(c, s)
		},
	}
}

const annotateHelp = `commands:
  <n> <label>    label word n (departure, arrival, none)
  <n>            select word n, then type a label
  treat on|off   set the treated flag
  save           save entities and treated flag
  show           list words and labels
  quit           leave (unsaved edits are discarded)
`

// runAnnotate reads commands from the app's reader until quit or EOF.
func runAnnotate(c *cli.Context, s *annotate.Session) error {
	out := c.App.Writer
	printWords(out, s)
	for _, issue := range s.Issues() {
		fmt.Fprintf(out, "note: dropped stored entity %d-%d (%s): %s\n", issue.Entity.Start, issue.Entity.End, issue.Kind, issue.Reason)
	}

	scanner := bufio.NewScanner(c.App.Reader)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "quit", "exit", "q":
			if s.Dirty() {
				fmt.Fprintln(out, "discarding unsaved changes")
			}
			return nil
		case "help", "?":
			fmt.Fprint(out, annotateHelp)
			continue
		case "show", "ls":
			printWords(out, s)
			continue
		case "save":
			saved, err := s.Commit(c.Context)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "saved: %d entities, valid: %s, treated: %s\n",
				len(saved.Entities), yesNo(saved.IsValid), yesNo(saved.IsTreated))
			continue
		case "treat":
			if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
				fmt.Fprintln(out, "usage: treat on|off")
				continue
			}
			if err := s.SetTreated(fields[1] == "on"); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		}

		if err := annotateWord(out, s, fields); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return outputError(errors.NewInternal(err))
	}
	if s.Dirty() {
		fmt.Fprintln(out, "\ndiscarding unsaved changes")
	}
	return nil
}

// annotateWord handles "<n> <label>", "<n>" and a bare "<label>" for the
// pending selection.
func annotateWord(out io.Writer, s *annotate.Session, fields []string) error {
	n, numErr := strconv.Atoi(fields[0])
	if numErr != nil {
		if len(fields) != 1 {
			return errors.NewInvalidRequest(fmt.Sprintf("unknown command %q (type help)", fields[0]))
		}
		label, err := sentence.ParseLabel(fields[0])
		if err != nil {
			return errors.NewInvalidRequest(err.Error())
		}
		sel, _ := s.Selection()
		if err := s.Choose(label); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s → %s\n", sel.Text, labelName(label))
		return nil
	}

	words := tokenize.Words(s.Tokens())
	if n < 1 || n > len(words) {
		return errors.NewInvalidRequest(fmt.Sprintf("word number must be between 1 and %d", len(words)))
	}
	tok := words[n-1]

	if len(fields) == 1 {
		s.SelectToken(tok.Start, tok.End)
		sel, _ := s.Selection()
		fmt.Fprintf(out, "selected %q (currently %s)\n", sel.Text, labelName(sel.Current))
		return nil
	}

	label, err := sentence.ParseLabel(strings.Join(fields[1:], " "))
	if err != nil {
		return errors.NewInvalidRequest(err.Error())
	}
	if err := s.ApplyLabel(tok.Start, tok.End, label); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s → %s\n", tok.Text, labelName(label))
	return nil
}

// printWords lists numbered word tokens with their labels.
func printWords(out io.Writer, s *annotate.Session) {
	labels := make(map[sentence.Span]sentence.Label)
	for _, e := range s.Entities() {
		labels[e.Span()] = e.Label
	}

	v := s.View()
	fmt.Fprintf(out, "sentence %d [%s] treated: %s, valid: %s\n", v.SentenceID, v.State, yesNo(v.IsTreated), yesNo(v.IsValid))
	for i, tok := range tokenize.Words(s.Tokens()) {
		label := ""
		if l, ok := labels[sentence.Span{Start: tok.Start, End: tok.End}]; ok {
			label = l.String()
		}
		fmt.Fprintf(out, "%3d  %-20s %s\n", i+1, tok.Text, label)
	}
}

func labelName(l sentence.Label) string {
	if l.Valid() {
		return l.String()
	}
	return "none"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a sentence",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := ops.ParseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Delete(c.Context, db, ops.DeleteInput{ID: id})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// validityCmd creates the validate and invalidate commands.
func validityCmd(db *sql.DB, name string, valid bool) *cli.Command {
	usage := "Mark a sentence valid regardless of its entities"
	if !valid {
		usage = "Mark a sentence invalid regardless of its entities"
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := ops.ParseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			output, err := ops.SetValid(c.Context, db, id, valid)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// treatAllCmd creates the treat-all command.
func treatAllCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "treat-all",
		Usage: "Mark every untreated sentence as treated",
		Action: func(c *cli.Context) error {
			output, err := ops.TreatAll(c.Context, db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show annotation progress",
		Action: func(c *cli.Context) error {
			output, err := ops.Stats(c.Context, db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// revalidateCmd creates the revalidate command.
func revalidateCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "revalidate",
		Usage: "Recompute validity of treated sentences",
		Action: func(c *cli.Context) error {
			output, err := ops.Revalidate(c.Context, db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export sentences as a JSONL training file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (default: ~/.tagline/exports/training-<ts>.jsonl)"},
			&cli.BoolFlag{Name: "treated-only", Usage: "Only export treated sentences"},
			&cli.BoolFlag{Name: "valid-only", Usage: "Only export valid sentences"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{
				Path:        c.String("path"),
				TreatedOnly: c.Bool("treated-only"),
				ValidOnly:   c.Bool("valid-only"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import sentences from a JSONL file",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.ImportModeError), Usage: "On invalid records: error|skip"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return outputError(errors.NewInvalidRequest("import path is required"))
			}
			output, err := ops.Import(c.Context, db, cfg, ops.ImportInput{
				Path: path,
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the sentence store over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			if db == nil {
				return outputError(errors.NewInvalidRequest("no database available"))
			}
			srv := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to the app's writer as JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if tErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseSpan parses "start:end".
func parseSpan(s string) (int, int, error) {
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, errors.NewInvalidRequest(fmt.Sprintf("span %q must be start:end", s))
	}
	start, err1 := strconv.Atoi(startStr)
	end, err2 := strconv.Atoi(endStr)
	if err1 != nil || err2 != nil {
		return 0, 0, errors.NewInvalidRequest(fmt.Sprintf("span %q must be start:end with integer offsets", s))
	}
	return start, end, nil
}

// parseAssignment parses "start:end=LABEL".
func parseAssignment(s string) (sentence.Entity, error) {
	spanStr, labelStr, ok := strings.Cut(s, "=")
	if !ok {
		return sentence.Entity{}, errors.NewInvalidRequest(fmt.Sprintf("entity %q must be start:end=LABEL", s))
	}
	start, end, err := parseSpan(spanStr)
	if err != nil {
		return sentence.Entity{}, err
	}
	label, err := sentence.ParseLabel(labelStr)
	if err != nil {
		return sentence.Entity{}, errors.NewInvalidRequest(err.Error())
	}
	if !label.Valid() {
		return sentence.Entity{}, errors.NewInvalidRequest(fmt.Sprintf("entity %q needs a label; use --clear to remove one", s))
	}
	return sentence.Entity{Start: start, End: end, Label: label}, nil
}
