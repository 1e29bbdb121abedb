// Package cmd implements the CLI command structure for todoapp.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/todoapp-go/internal/auth"
	"github.com/nibzard/todoapp-go/internal/config"
	"github.com/nibzard/todoapp-go/internal/logging"
	"github.com/nibzard/todoapp-go/internal/store"
	"github.com/nibzard/todoapp-go/internal/tasks"
	"github.com/nibzard/todoapp-go/internal/todo"
	"github.com/nibzard/todoapp-go/internal/ui"
)

// Version is set via ldflags at build time.
var Version = "dev"

// streams are the process's standard streams, replaceable in tests.
type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// Run executes the todoapp CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr})
}

func run(ctx context.Context, args []string, std streams) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("todoapp", flag.ContinueOnError)
	fs.SetOutput(std.errOut)
	fs.Usage = func() {
		printUsage(fs, std.errOut)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	// Global flags
	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := cws.Config
	if *help {
		printUsage(fs, std.out)
		return nil
	}
	if *showVersion {
		return versionCommand(std.out)
	}

	logger, closer, err := logging.New(logging.OptionsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer closer.Close()
	logger.Debug("config loaded", "file", cws.GetConfigFile(), "db", cfg.DBPath)

	// Determine the subcommand
	// If no args or first arg is a flag, use "run" as default
	subcommand := "run"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 {
		if !strings.HasPrefix(remainingArgs[0], "-") {
			subcommand = remainingArgs[0]
			remainingArgs = remainingArgs[1:]
		}
	}

	switch subcommand {
	case "run":
		return runCommand(ctx, cfg, logger, remainingArgs, std)
	case "tui":
		return tuiCommand(ctx, cfg, logger, remainingArgs, std)
	case "export":
		return exportCommand(ctx, cfg, logger, remainingArgs, std)
	case "import":
		return importCommand(ctx, cfg, logger, remainingArgs, std)
	case "doctor":
		return doctorCommand(ctx, cws, remainingArgs, std)
	case "config":
		return configCommand(cws, remainingArgs, std)
	case "version":
		return versionCommand(std.out)
	case "help":
		printUsage(fs, std.out)
		return nil
	default:
		fmt.Fprintf(std.errOut, "Unknown command: %s\n", subcommand)
		printUsage(fs, std.errOut)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// services bundles the components every session command needs.
type services struct {
	store  *store.Store
	auth   *auth.Manager
	tasks  *tasks.Repository
	bridge *todo.Bridge
}

func openServices(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services, error) {
	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		s.Close()
		return nil, err
	}
	logger.Debug("store opened", "path", s.Path())

	repo := tasks.NewRepository(s, logger)
	return &services{
		store:  s,
		auth:   auth.NewManager(s, hasher, logger),
		tasks:  repo,
		bridge: todo.NewBridge(s, repo, logger),
	}, nil
}

func (s *services) Close() error {
	return s.store.Close()
}

func noArgs(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected arguments: %v", rest)
	}
	return nil
}

// runCommand runs the interactive menu.
func runCommand(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string, std streams) error {
	fs := flag.NewFlagSet("todoapp run", flag.ContinueOnError)
	fs.SetOutput(std.errOut)
	if err := noArgs(fs, args); err != nil {
		return err
	}

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	p := ui.NewPrompter(std.in, std.out)
	return ui.NewMenu(svc.auth, svc.tasks, svc.bridge, p, logger).Run(ctx)
}

// login prompts for credentials on stderr and reports a failed attempt as an error.
func login(ctx context.Context, svc *services, std streams) (int64, *ui.Prompter, error) {
	p := ui.NewPrompter(std.in, std.errOut)
	id, ok, err := ui.Login(ctx, p, svc.auth)
	if err != nil {
		return 0, nil, fmt.Errorf("login: %w", err)
	}
	if !ok {
		return 0, nil, errors.New("invalid username or password")
	}
	return id, p, nil
}

// tuiCommand logs in and launches the task browser.
func tuiCommand(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string, std streams) error {
	fs := flag.NewFlagSet("todoapp tui", flag.ContinueOnError)
	fs.SetOutput(std.errOut)
	if err := noArgs(fs, args); err != nil {
		return err
	}
	if !ui.IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	id, _, err := login(ctx, svc, std)
	if err != nil {
		return err
	}
	username, err := svc.auth.Username(ctx, id)
	if err != nil {
		return err
	}
	session, _ := logging.WithSession(logger)
	session.Info("tui started", "user_id", id)
	return ui.RunTUI(ctx, svc.tasks, id, username)
}

// exportCommand logs in and writes the user's tasks to a file or stdout.
func exportCommand(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string, std streams) error {
	fs := flag.NewFlagSet("todoapp export", flag.ContinueOnError)
	fs.SetOutput(std.errOut)
	format := fs.String("format", "", "Document format (json|yaml); defaults to the file extension")
	output := fs.String("o", "", "Output file (default stdout)")
	if err := noArgs(fs, args); err != nil {
		return err
	}
	f, err := resolveFormat(*format, *output)
	if err != nil {
		return err
	}

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	id, p, err := login(ctx, svc, std)
	if err != nil {
		return err
	}

	if *output == "" {
		_, err := svc.bridge.ExportTo(ctx, id, std.out, f)
		return err
	}
	var n int
	err = writeFileAtomic(*output, func(w io.Writer) error {
		var err error
		n, err = svc.bridge.ExportTo(ctx, id, w, f)
		return err
	})
	if err != nil {
		return err
	}
	p.Printf("Exported %d tasks to '%s'.\n", n, *output)
	return nil
}

// writeFileAtomic writes to a temp file next to path and renames it into
// place only once write succeeds. On failure path is left untouched.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename export file: %w", err)
	}
	return nil
}

// importCommand logs in and appends the tasks of a document file.
func importCommand(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string, std streams) error {
	fs := flag.NewFlagSet("todoapp import", flag.ContinueOnError)
	fs.SetOutput(std.errOut)
	format := fs.String("format", "", "Document format (json|yaml); defaults to the file extension")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("import expects exactly one file argument")
	}
	path := fs.Arg(0)
	f, err := resolveFormat(*format, path)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", todo.ErrFileNotFound, path)
		}
		return fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	id, p, err := login(ctx, svc, std)
	if err != nil {
		return err
	}
	n, err := svc.bridge.ImportFrom(ctx, id, file, f)
	if err != nil {
		return err
	}
	p.Printf("Imported %d tasks from '%s'.\n", n, path)
	return nil
}

func resolveFormat(name, path string) (todo.Format, error) {
	if name != "" {
		return todo.ParseFormat(name)
	}
	if path == "" {
		return todo.FormatJSON, nil
	}
	return todo.FormatFromPath(path), nil
}

// doctorCommand reports the resolved configuration and database health.
func doctorCommand(ctx context.Context, cws *config.ConfigWithSources, args []string, std streams) error {
	fs := flag.NewFlagSet("todoapp doctor", flag.ContinueOnError)
	fs.SetOutput(std.errOut)
	if err := noArgs(fs, args); err != nil {
		return err
	}
	cfg := cws.Config
	w := std.out

	fmt.Fprintln(w, "todoapp doctor")
	fmt.Fprintln(w, "==============")
	fmt.Fprintln(w)

	allOK := true

	fmt.Fprintln(w, "Config:")
	if file := cws.GetConfigFile(); file != "" {
		fmt.Fprintf(w, "  Config file: %s\n", file)
	} else {
		fmt.Fprintln(w, "  Config file: (none, using defaults)")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(w, "  ❌ %v\n", err)
		allOK = false
	} else {
		fmt.Fprintln(w, "  ✅ Valid")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Database: %s\n", cfg.DBPath)
	if info, err := os.Stat(cfg.DBPath); err == nil && info.IsDir() {
		fmt.Fprintln(w, "  ❌ Error: path is a directory")
		allOK = false
	} else if err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(w, "  ❌ Error: %v\n", err)
		allOK = false
	} else {
		if os.IsNotExist(err) {
			fmt.Fprintln(w, "  ⚠️  Not found (will be created)")
		}
		s, err := store.Open(ctx, cfg.DBPath)
		if err != nil {
			fmt.Fprintf(w, "  ❌ Open failed: %v\n", err)
			allOK = false
		} else {
			stats, err := s.Stats(ctx)
			s.Close()
			if err != nil {
				fmt.Fprintf(w, "  ❌ Query failed: %v\n", err)
				allOK = false
			} else {
				fmt.Fprintln(w, "  ✅ Schema OK")
				fmt.Fprintf(w, "  Users: %d\n", stats.Users)
				fmt.Fprintf(w, "  Tasks: %d\n", stats.Tasks)
			}
		}
	}
	fmt.Fprintln(w)

	if allOK {
		fmt.Fprintln(w, "✅ All checks passed!")
		return nil
	}
	fmt.Fprintln(w, "⚠️  Some checks failed.")
	return fmt.Errorf("doctor checks failed")
}

// configCommand prints the resolved configuration with the source of each value.
func configCommand(cws *config.ConfigWithSources, args []string, std streams) error {
	fs := flag.NewFlagSet("todoapp config", flag.ContinueOnError)
	fs.SetOutput(std.errOut)
	example := fs.Bool("example", false, "Print an example config file")
	if err := noArgs(fs, args); err != nil {
		return err
	}
	if *example {
		fmt.Fprint(std.out, config.ExampleConfig())
		return nil
	}

	cfg := cws.Config
	values := map[string]string{
		"db_path":        cfg.DBPath,
		"bcrypt_cost":    fmt.Sprint(cfg.BcryptCost),
		"log_level":      cfg.LogLevel,
		"log_format":     cfg.LogFormat,
		"log_timestamps": fmt.Sprint(cfg.LogTimestamps),
		"log_caller":     fmt.Sprint(cfg.LogCaller),
		"log_file":       cfg.LogFile,
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, file := range cws.Files {
		fmt.Fprintf(std.out, "# read %s\n", file)
	}
	for _, k := range keys {
		fmt.Fprintf(std.out, "%-15s = %-40q # %s\n", k, values[k], cws.Sources[k])
	}
	return nil
}

// versionCommand prints version information.
func versionCommand(w io.Writer) error {
	fmt.Fprintf(w, "todoapp version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "todoapp - a multi-user terminal todo manager")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  todoapp [options] [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run           Interactive menu (default command)")
	fmt.Fprintln(w, "  tui           Log in and browse tasks in a terminal UI")
	fmt.Fprintln(w, "  export        Log in and write your tasks as JSON or YAML")
	fmt.Fprintln(w, "  import <file> Log in and append tasks from a JSON or YAML file")
	fmt.Fprintln(w, "  doctor        Check config and database")
	fmt.Fprintln(w, "  config        Show resolved config and where each value came from")
	fmt.Fprintln(w, "  version       Show version information")
	fmt.Fprintln(w, "  help          Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export Options:")
	fmt.Fprintln(w, "  -format string")
	fmt.Fprintln(w, "        Document format (json|yaml)")
	fmt.Fprintln(w, "  -o string")
	fmt.Fprintln(w, "        Output file (default stdout)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Import Options:")
	fmt.Fprintln(w, "  -format string")
	fmt.Fprintln(w, "        Document format (json|yaml)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config Options:")
	fmt.Fprintln(w, "  -example")
	fmt.Fprintln(w, "        Print an example config file")
}
