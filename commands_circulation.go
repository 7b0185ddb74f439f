package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

func newBorrowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "borrow <book-id>",
		Short: "Borrow a copy of a book as the operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseIDArg("book ID", args[0])
			if err != nil {
				return err
			}
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				b, err := a.manager.Borrow(cmd.Context(), s, bookID)
				if err != nil {
					return err
				}
				book, err := a.manager.GetBook(cmd.Context(), bookID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Borrowing %d: '%s' checked out to %s, due %s\n",
					b.ID, book.Title, s.User.Name, b.DueAt.In(a.manager.Now().Location()).Format(time.DateOnly))
				return nil
			})
		},
	}
}

func newReturnCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "return <borrowing-id>",
		Short: "Return a borrowed copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg("borrowing ID", args[0])
			if err != nil {
				return err
			}
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				b, err := a.manager.Return(cmd.Context(), s, id)
				if err != nil {
					return err
				}
				late := ""
				if b.DueAt.Before(*b.ReturnedAt) {
					late = " (late)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Borrowing %d returned%s\n", b.ID, late)
				return nil
			})
		},
	}
}

func newBorrowingsCmd(opts *rootOptions) *cobra.Command {
	var (
		q   library.ListQuery
		dir string
	)
	cmd := &cobra.Command{
		Use:   "borrowings",
		Short: "List borrowings (all for librarians, your own for members)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q.Direction = library.ParseDirection(dir)
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				page, err := a.manager.ListBorrowings(cmd.Context(), s, q)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if page.TotalItems == 0 {
					fmt.Fprintln(out, "No borrowings found.")
					return nil
				}
				printBorrowings(out, page.Items, a.manager.Now())
				fmt.Fprintf(out, "Page %d of %d (%d borrowings)\n", page.Page, page.TotalPages, page.TotalItems)
				return nil
			})
		},
	}
	listFlags(cmd, &q, &dir)
	return cmd
}

func newOverdueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "List overdue borrowings (all for librarians, your own for members)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				var (
					items []*library.BorrowingDetail
					err   error
				)
				if s.User.IsLibrarian() {
					items, err = a.manager.Overdue(cmd.Context(), s)
				} else {
					items, err = a.manager.MyOverdue(cmd.Context(), s)
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Nothing overdue.")
					return nil
				}
				printBorrowings(out, items, a.manager.Now())
				return nil
			})
		},
	}
}

func newDashboardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard for the operator's role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				stats, err := a.manager.Dashboard(cmd.Context(), s)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Books:          %d\n", stats.TotalBooks)
				fmt.Fprintf(out, "Copies:         %d\n", stats.TotalCopies)
				if s.User.IsLibrarian() {
					fmt.Fprintf(out, "Borrowed:       %d\n", stats.TotalBorrowed)
				} else {
					fmt.Fprintf(out, "My borrowed:    %d\n", stats.MyBorrowed)
				}
				fmt.Fprintf(out, "Due today:      %d\n", stats.BooksDueToday)
				fmt.Fprintf(out, "Overdue:        %d\n", stats.OverdueCount)
				return nil
			})
		},
	}
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every book's copy counts against its active borrowings (librarian)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				if !s.User.IsLibrarian() {
					return library.Forbiddenf("librarian access required")
				}
				if err := a.manager.CheckIntegrity(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All copy counts are consistent.")
				return nil
			})
		},
	}
}

func printBorrowings(out io.Writer, items []*library.BorrowingDetail, now time.Time) {
	fmt.Fprintf(out, "%-5s %-30s %-20s %-12s %-9s %s\n", "ID", "Book", "User", "Due", "Status", "")
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for _, d := range items {
		title, name := fmt.Sprintf("#%d", d.BookID), fmt.Sprintf("#%d", d.UserID)
		if d.Book != nil {
			title = d.Book.Title
		}
		if d.User != nil {
			name = d.User.Name
		}
		fmt.Fprintf(out, "%-5d %-30s %-20s %-12s %-9s %s\n",
			d.ID,
			truncateString(title, 30),
			truncateString(name, 20),
			d.DueAt.In(now.Location()).Format(time.DateOnly),
			library.Classify(&d.Borrowing, now),
			library.DueLabel(&d.Borrowing, now))
	}
}
