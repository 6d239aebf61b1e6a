package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/config"
	"github.com/sakif/inkwell/internal/repository/sqldb"
	"github.com/sakif/inkwell/internal/service"
)

// app carries the global flags and the services of one invocation.
type app struct {
	dbURL      string
	envFile    string
	jsonOutput bool
	verbose    bool

	out    io.Writer
	errOut io.Writer

	// passwords is swapped for a low-cost hasher in tests.
	passwords *auth.PasswordService
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	return (&app{out: out, errOut: errOut}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "inkwell-admin",
		Short: "Inkwell blog administration",
		Long: `inkwell-admin works directly on the blog database.

Commands:
  migrate    - Create missing tables and indexes
  user       - Create, list and delete users
  category   - Create, list and delete categories
  tag        - Create, list and delete tags`,
		SilenceUsage: true,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVar(&a.dbURL, "db", "", "Database URL (defaults to DATABASE_URL)")
	root.PersistentFlags().StringVar(&a.envFile, "env", ".env", "Optional .env file")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		a.migrateCmd(),
		a.userCmd(),
		a.categoryCmd(),
		a.tagCmd(),
	)
	return root
}

// services is everything a command may need, backed by one open database.
type services struct {
	db       *sqldb.DB
	users    *service.UserService
	taxonomy *service.TaxonomyService
}

// open connects to the configured database. Opening also creates any
// missing tables, so every command works on a fresh database.
func (a *app) open(ctx context.Context) (*services, error) {
	dsn := a.dbURL
	if dsn == "" {
		db, err := config.LoadDatabase(a.envFile)
		if err != nil {
			return nil, err
		}
		dsn = db.URL
	}

	if path := config.SQLitePath(dsn); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqldb.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	logger := a.logger()
	passwords := a.passwords
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}
	return &services{
		db: db,
		// Sessions are never issued here, so no token service.
		users:    service.NewUserService(db, passwords, nil, logger),
		taxonomy: service.NewTaxonomyService(db, logger),
	}, nil
}

func (a *app) logger() *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
}

// run opens the database, calls fn and closes the database again.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, s *services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer s.db.Close()
	return fn(ctx, s)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Long: `Create any missing tables and indexes. Existing data is left alone,
so running migrate twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *services) error {
				fmt.Fprintf(a.out, "✓ %s schema is up to date\n", s.db.Engine())
				return nil
			})
		},
	}
}
