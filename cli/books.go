package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"library-desk/library"
)

func newBooksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the catalog",
	}
	cmd.AddCommand(
		newBooksListCmd(app),
		newBooksShowCmd(app),
		newBooksSearchCmd(app),
		newBooksGenresCmd(app),
		newBooksAddCmd(app),
		newBooksUpdateCmd(app),
		newBooksDeleteCmd(app),
	)
	return cmd
}

func (a *App) showBooks(books []*library.Book, empty string) error {
	if a.jsonOutput {
		return printJSON(a.Out, books)
	}
	if len(books) == 0 {
		fmt.Fprintln(a.Out, empty)
		return nil
	}
	printBooks(a.Out, books)
	return nil
}

func newBooksListCmd(app *App) *cobra.Command {
	var onlyAvailable bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				books []*library.Book
				err   error
			)
			if onlyAvailable {
				books, err = app.lm.GetAvailableBooks(cmd.Context())
			} else {
				books, err = app.lm.GetAllBooks(cmd.Context())
			}
			if err != nil {
				return err
			}
			return app.showBooks(books, "No books in library.")
		},
	}
	cmd.Flags().BoolVar(&onlyAvailable, "available", false, "only books that can be borrowed")
	return cmd
}

func newBooksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show BOOK_ID",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			b, err := app.lm.GetBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			if app.jsonOutput {
				return printJSON(app.Out, b)
			}
			fmt.Fprintf(app.Out, "ID:           %d\nTitle:        %s\nAuthor:       %s\nGenre:        %s\nAvailability: %s\n",
				b.ID, b.Title, b.Author, b.Genre, b.Availability)
			return nil
		},
	}
}

func newBooksSearchCmd(app *App) *cobra.Command {
	var q library.BookQuery
	cmd := &cobra.Command{
		Use:   "search TEXT",
		Short: "Search by title, author or genre",
		Long:  "Search books whose title, author or genre contains TEXT. Limit the columns with --title, --author and --genre.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Text = args[0]
			}
			books, err := app.lm.SearchBooks(cmd.Context(), q)
			if err != nil {
				return err
			}
			if app.jsonOutput {
				return printJSON(app.Out, books)
			}
			if len(books) == 0 {
				fmt.Fprintf(app.Out, "No books found matching '%s'.\n", q.Text)
				return nil
			}
			fmt.Fprintf(app.Out, "Found %d book(s) matching '%s':\n", len(books), q.Text)
			printBooks(app.Out, books)
			return nil
		},
	}
	cmd.Flags().BoolVar(&q.Title, "title", false, "search titles")
	cmd.Flags().BoolVar(&q.Author, "author", false, "search authors")
	cmd.Flags().BoolVar(&q.Genre, "genre", false, "search genres")
	cmd.Flags().BoolVar(&q.OnlyAvailable, "available", false, "only books that can be borrowed")
	return cmd
}

func newBooksGenresCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List the suggested genres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.jsonOutput {
				return printJSON(app.Out, library.Genres)
			}
			fmt.Fprintln(app.Out, strings.Join(library.Genres, "\n"))
			return nil
		},
	}
}

func newBooksAddCmd(app *App) *cobra.Command {
	var title, author, genre string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.adminSession(cmd.Context()); err != nil {
				return err
			}
			var err error
			if title, err = app.valueOrPrompt(title, "Title", ""); err != nil {
				return err
			}
			if author, err = app.valueOrPrompt(author, "Author", ""); err != nil {
				return err
			}
			if genre, err = app.valueOrPrompt(genre, "Genre ("+strings.Join(library.Genres, ", ")+")", ""); err != nil {
				return err
			}
			id, err := app.lm.AddBook(cmd.Context(), title, author, genre)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Added book ID %d.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringVar(&author, "author", "", "book author")
	cmd.Flags().StringVar(&genre, "genre", "", "book genre")
	return cmd
}

func newBooksUpdateCmd(app *App) *cobra.Command {
	var title, author, genre string
	cmd := &cobra.Command{
		Use:   "update BOOK_ID",
		Short: "Edit a book's details (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.adminSession(cmd.Context()); err != nil {
				return err
			}
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			b, err := app.lm.GetBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			if title, err = app.valueOrPrompt(title, "Title", b.Title); err != nil {
				return err
			}
			if author, err = app.valueOrPrompt(author, "Author", b.Author); err != nil {
				return err
			}
			if genre, err = app.valueOrPrompt(genre, "Genre", b.Genre); err != nil {
				return err
			}
			if err := app.lm.UpdateBook(cmd.Context(), id, title, author, genre); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Updated book ID %d.\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&author, "author", "", "new author")
	cmd.Flags().StringVar(&genre, "genre", "", "new genre")
	return cmd
}

func newBooksDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete BOOK_ID",
		Short: "Delete a book that is not on loan (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.adminSession(cmd.Context()); err != nil {
				return err
			}
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			if err := app.lm.DeleteBook(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted book ID %d.\n", id)
			return nil
		},
	}
}
