package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"library-circulation/internal/config"
	"library-circulation/library"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	flags    config.Flags
	operator int64
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "library",
		Short:         "Library circulation: catalog, borrowing and dashboards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.flags.DBPath, "db", "", "SQLite database file (env LIBRARY_DB, default library.db)")
	pf.StringVar(&opts.flags.Env, "env", "", "environment: development, staging or production (env ENV)")
	pf.StringVar(&opts.flags.LogLevel, "log-level", "", "log level: debug, info, warn or error (env LOG_LEVEL)")
	pf.StringVar(&opts.flags.LoanPeriodDays, "loan-days", "", "loan period in days (env LOAN_PERIOD_DAYS, default 14)")
	pf.StringVar(&opts.flags.TimeZone, "tz", "", "IANA time zone for due dates (env LIBRARY_TZ, default Local)")
	pf.StringVar(&opts.flags.EnvFile, "env-file", "", "path of the .env file (default .env)")
	pf.Int64Var(&opts.operator, "as", 0, "ID of the user running the command")

	cmd.AddCommand(
		newServeCmd(opts),
		newBookCmd(opts),
		newUserCmd(opts),
		newBorrowCmd(opts),
		newReturnCmd(opts),
		newBorrowingsCmd(opts),
		newOverdueCmd(opts),
		newDashboardCmd(opts),
		newVerifyCmd(opts),
	)
	return cmd
}

// run opens the app for the duration of fn.
func (o *rootOptions) run(fn func(a *app) error) error {
	a, err := openApp(o.flags)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// runAs is run with an authenticated operator session.
func (o *rootOptions) runAs(ctx context.Context, fn func(a *app, s *library.Session) error) error {
	return o.run(func(a *app) error {
		s, err := a.login(ctx, o.operator)
		if err != nil {
			return err
		}
		return fn(a, s)
	})
}

// listFlags binds the search, sort and paging flags of a listing command.
func listFlags(cmd *cobra.Command, q *library.ListQuery, dir *string) {
	cmd.Flags().StringVarP(&q.Query, "query", "q", "", "case-insensitive search")
	cmd.Flags().StringVar(&q.Sort, "sort", "", "field to sort by, e.g. title or book.title")
	cmd.Flags().StringVar(dir, "dir", "asc", "sort direction: asc or desc")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", library.DefaultPageSize, "items per page")
}

func parseIDArg(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, library.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}
