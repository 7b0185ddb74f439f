package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-circulation/library"
)

func newBookCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the catalog",
	}
	cmd.AddCommand(
		newBookAddCmd(opts),
		newBookListCmd(opts),
		newBookDeleteCmd(opts),
		newBookCopiesCmd(opts),
	)
	return cmd
}

func newBookAddCmd(opts *rootOptions) *cobra.Command {
	var b library.Book
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book (librarian)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(b.Title) == "" || strings.TrimSpace(b.Author) == "" {
				return library.Validationf("--title and --author are required")
			}
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				book, err := a.manager.AddBook(cmd.Context(), s, &b)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added book ID %d: %s (%d copies)\n", book.ID, book.Title, book.TotalCopies)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&b.Title, "title", "", "title")
	f.StringVar(&b.Author, "author", "", "author")
	f.StringVar(&b.Genre, "genre", "", "genre")
	f.StringVar(&b.ISBN, "isbn", "", "ISBN")
	f.IntVar(&b.TotalCopies, "copies", 1, "number of copies owned")
	f.StringVar(&b.ImageURL, "image-url", "", "cover image URL")
	return cmd
}

func newBookListCmd(opts *rootOptions) *cobra.Command {
	var (
		q   library.ListQuery
		dir string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search and list the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q.Direction = library.ParseDirection(dir)
			return opts.run(func(a *app) error {
				page, err := a.manager.ListBooks(cmd.Context(), q)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if page.TotalItems == 0 {
					fmt.Fprintln(out, "No books found.")
					return nil
				}

				fmt.Fprintf(out, "%-5s %-30s %-25s %-15s %s\n", "ID", "Title", "Author", "Genre", "Available")
				fmt.Fprintln(out, strings.Repeat("-", 90))
				for _, b := range page.Items {
					fmt.Fprintf(out, "%-5d %-30s %-25s %-15s %d/%d\n",
						b.ID,
						truncateString(b.Title, 30),
						truncateString(b.Author, 25),
						truncateString(b.Genre, 15),
						b.AvailableCopies, b.TotalCopies)
				}
				fmt.Fprintf(out, "Page %d of %d (%d books)\n", page.Page, page.TotalPages, page.TotalItems)
				return nil
			})
		},
	}
	listFlags(cmd, &q, &dir)
	return cmd
}

func newBookDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <book-id>",
		Short: "Delete a book with no copies on loan (librarian)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg("book ID", args[0])
			if err != nil {
				return err
			}
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				if err := a.manager.DeleteBook(cmd.Context(), s, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted book ID %d\n", id)
				return nil
			})
		},
	}
}

func newBookCopiesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "copies <book-id> <total>",
		Short: "Change how many copies of a book the library owns (librarian)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg("book ID", args[0])
			if err != nil {
				return err
			}
			total, err := strconv.Atoi(args[1])
			if err != nil {
				return library.Validationf("invalid total %q", args[1])
			}
			return opts.runAs(cmd.Context(), func(a *app, s *library.Session) error {
				book, err := a.manager.SetTotalCopies(cmd.Context(), s, id, total)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Book '%s' now has %d copies, %d available\n",
					book.Title, book.TotalCopies, book.AvailableCopies)
				return nil
			})
		},
	}
}
