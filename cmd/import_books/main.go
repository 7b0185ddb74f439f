// Command import_books seeds the catalog from a CSV file with the columns
// title, author, genre, isbn, copies and image_url.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-circulation/internal/config"
	"library-circulation/internal/di"
	"library-circulation/internal/di/providers"
	"library-circulation/library"
)

// readPassword securely reads a password with masking. Replaced in tests.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(os.Stderr)
	return strings.TrimSpace(string(bytePassword)), nil
}

func main() {
	if err := newImportCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var (
		flags    config.Flags
		operator int64
		fresh    bool
	)
	cmd := &cobra.Command{
		Use:           "import_books <catalog.csv>",
		Short:         "Import books from a CSV catalog",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if operator <= 0 {
				return fmt.Errorf("--as <librarian id> is required")
			}
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer file.Close()

			ctx := cmd.Context()
			injector, manager, err := openManager(flags)
			if err != nil {
				return err
			}
			defer func() {
				if injector != nil {
					injector.Shutdown()
				}
			}()

			password, err := readPassword(fmt.Sprintf("Password for user %d: ", operator))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			session, err := manager.AuthenticateUser(ctx, operator, password)
			if err != nil {
				return err
			}

			if fresh {
				if !session.User.IsLibrarian() {
					return library.Forbiddenf("librarian access required")
				}
				// The wipe drops every user, so the operator is recreated with the
				// password just entered.
				operatorUser := session.User
				injector.Shutdown()
				injector = nil
				if err := removeDatabase(cmd.ErrOrStderr(), dbPath(flags)); err != nil {
					return err
				}
				if injector, manager, err = openManager(flags); err != nil {
					return err
				}
				id, err := manager.AddUser(ctx, operatorUser.Name, operatorUser.Email, library.Librarian, password)
				if err != nil {
					return err
				}
				if session, err = manager.SessionFor(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recreated librarian %s with ID %d\n", operatorUser.Name, id)
			}

			result, err := manager.ImportCatalog(ctx, session, file)
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), result)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.DBPath, "db", "", "SQLite database file (env LIBRARY_DB, default library.db)")
	f.StringVar(&flags.EnvFile, "env-file", "", "path of the .env file (default .env)")
	f.StringVar(&flags.LogLevel, "log-level", "", "log level (env LOG_LEVEL)")
	f.Int64Var(&operator, "as", 0, "ID of the librarian running the import")
	f.BoolVar(&fresh, "fresh", false, "start from an empty database; only the operator account is kept")
	return cmd
}

func openManager(flags config.Flags) (*do.RootScope, *providers.ManagerHandle, error) {
	injector := di.NewContainer(flags)
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		injector.Shutdown()
		return nil, nil, err
	}
	handle, err := do.Invoke[*providers.ManagerHandle](injector)
	if err != nil {
		injector.Shutdown()
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return injector, handle, nil
}

func dbPath(flags config.Flags) string {
	if flags.DBPath != "" {
		return flags.DBPath
	}
	if env := os.Getenv("LIBRARY_DB"); env != "" {
		return env
	}
	return "library.db"
}

func removeDatabase(w io.Writer, path string) error {
	fmt.Fprintln(w, "Cleaning up existing database files...")
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", file, err)
		}
	}
	return nil
}

func report(w io.Writer, result *library.ImportResult) {
	for _, b := range result.Imported {
		fmt.Fprintf(w, "Imported: %s by %s (ID: %d, %d copies)\n", b.Title, b.Author, b.ID, b.TotalCopies)
	}
	for _, f := range result.Failed {
		fmt.Fprintf(w, "ERROR - %v\n", f)
	}
	fmt.Fprintf(w, "\nImport complete!\n")
	fmt.Fprintf(w, "Successfully imported: %d books\n", len(result.Imported))
	fmt.Fprintf(w, "Errors: %d\n", len(result.Failed))
}
