/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/josephgoksu/loomboard/internal/memory"
	"github.com/josephgoksu/loomboard/internal/migration"
	"github.com/josephgoksu/loomboard/internal/task"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	migrateAPIURL string
	migrateToken  string
	migrateUser   string
	migrateSkip   bool
	migrateYes    bool
	migrateForce  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [export.json]",
	Short: "Import tasks exported from the old browser app",
	Long: `Import a {"tasks": [...]} export from the old single-page app. Archived
and malformed tasks are skipped; statuses and p0-p3 priorities are mapped to
the board's values.

By default the tasks are posted to the session API at --api-url with a
session token. With --user they are written straight into the local
database under data_dir.

A marker in the data directory stops the prompt from coming back after a
successful import or --skip. Use --force to import anyway.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if migrateSkip {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrateAPIURL, "api-url", "", "board API base URL (default site_url)")
	migrateCmd.Flags().StringVar(&migrateToken, "token", "", "session token for the API import (env LOOMBOARD_SESSION_TOKEN)")
	migrateCmd.Flags().StringVar(&migrateUser, "user", "", "import into the local database for this owner instead of calling the API")
	migrateCmd.Flags().BoolVar(&migrateSkip, "skip", false, "record that no migration is wanted")
	migrateCmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "import without asking")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "import even if a previous migration finished")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	runner := &migration.Runner{
		FS:    fs,
		Flag:  migration.NewFlag(fs, cfg.DataDir),
		Log:   l,
		Force: migrateForce,
	}
	out := cmd.OutOrStdout()

	if migrateSkip {
		if err := runner.Skip(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Migration skipped. You will not be asked again.")
		return nil
	}

	if migrateUser != "" {
		loc, err := cfg.Board.Location()
		if err != nil {
			return err
		}
		store, err := memory.NewSQLiteStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open board database: %w", err)
		}
		defer func() { _ = store.Close() }()
		runner.Importer = migration.ServiceImporter{
			Service: task.NewService(store, task.WithLocation(loc)),
			UserID:  migrateUser,
		}
	} else {
		apiURL := migrateAPIURL
		if apiURL == "" {
			apiURL = cfg.SiteURL
		}
		token := migrateToken
		if token == "" {
			token = os.Getenv("LOOMBOARD_SESSION_TOKEN")
		}
		if apiURL == "" || token == "" {
			return errors.New("migrate needs --api-url (or site_url) and --token, or --user for a local import")
		}
		runner.Importer = migration.NewAPIImporter(apiURL, token, nil)
	}

	var confirm func(migration.Plan) bool
	if !migrateYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("stdin is not a terminal; pass --yes to import without confirmation")
		}
		confirm = func(p migration.Plan) bool {
			return askImport(cmd.InOrStdin(), out, p)
		}
	}

	res, err := runner.Run(cmd.Context(), args[0], confirm)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(out, res.Message())
	return nil
}

func askImport(in io.Reader, out io.Writer, p migration.Plan) bool {
	fmt.Fprintf(out, "Found %d task(s) to import", p.Valid)
	if p.Skipped() > 0 {
		fmt.Fprintf(out, " (%d invalid will be skipped)", p.Skipped())
	}
	fmt.Fprint(out, ". Import now? [y/N] ")

	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
