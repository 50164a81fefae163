package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"library-desk/config"
	"library-desk/library"
)

// catalogEntry is one book in a JSON catalog file.
type catalogEntry struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

// defaultCatalog seeds a fresh library when no file is given.
var defaultCatalog = []catalogEntry{
	{"1984", "George Orwell", "Science Fiction"},
	{"Animal Farm", "George Orwell", "Satire"},
	{"The Fellowship of the Ring", "J.R.R. Tolkien", "Fantasy"},
	{"The Two Towers", "J.R.R. Tolkien", "Fantasy"},
	{"The Return of the King", "J.R.R. Tolkien", "Fantasy"},
	{"Harry Potter and the Philosopher's Stone", "J.K. Rowling", "Children's"},
	{"Harry Potter and the Chamber of Secrets", "J.K. Rowling", "Children's"},
	{"Romeo and Juliet", "William Shakespeare", "Romance"},
	{"The Three Musketeers", "Alexandre Dumas", "Adventure"},
	{"The Three Little Pigs", "Traditional", "Children's"},
	{"Pride and Prejudice", "Jane Austen", "Classics"},
}

func main() {
	var (
		configFile string
		file       string
		reset      bool
	)
	cmd := &cobra.Command{
		Use:          "import_books",
		Short:        "Bulk-load books into the library database",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if reset {
				resetSQLite(cmd.OutOrStdout(), cfg)
			}

			entries := defaultCatalog
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				if entries, err = readCatalog(f); err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
			}

			var db *library.Database
			if cfg.Database.Driver == library.DriverSQLite && cfg.Database.DSN == "" {
				db, err = library.NewDatabase(cfg.Database.Path)
			} else {
				db, err = library.Open(cfg.Database.Driver, cfg.Database.ConnectionString())
			}
			if err != nil {
				return fmt.Errorf("creating database: %w", err)
			}
			manager := library.NewManager(db)
			defer manager.Close()

			success, failed := importCatalog(cmd.Context(), manager, entries, cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "\nImport complete!\n")
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully imported: %d books\n", success)
			fmt.Fprintf(cmd.OutOrStdout(), "Errors: %d\n", failed)
			if success > 0 {
				printSummary(cmd.Context(), cmd.OutOrStdout(), manager)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "config file")
	cmd.Flags().StringVar(&file, "file", "", "JSON catalog: [{\"title\",\"author\",\"genre\"}]")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the SQLite database files first")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func readCatalog(r io.Reader) ([]catalogEntry, error) {
	var entries []catalogEntry
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// importCatalog adds each entry through the manager so validation applies.
func importCatalog(ctx context.Context, manager *library.LibraryManager, entries []catalogEntry, out io.Writer) (success, failed int) {
	for _, e := range entries {
		fmt.Fprintf(out, "Importing: %s by %s... ", e.Title, e.Author)
		bookID, err := manager.AddBook(ctx, e.Title, e.Author, e.Genre)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", bookID)
		success++
	}
	return success, failed
}

// resetSQLite removes the database and its WAL side files.
func resetSQLite(out io.Writer, cfg *config.Config) {
	if cfg.Database.Driver != library.DriverSQLite {
		fmt.Fprintln(out, "Warning: --reset only applies to SQLite, skipping")
		return
	}
	fmt.Fprintln(out, "Cleaning up existing database files...")
	for _, file := range []string{cfg.Database.Path, cfg.Database.Path + "-shm", cfg.Database.Path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Fprintln(out, "Database cleanup complete.")
}

func printSummary(ctx context.Context, out io.Writer, manager *library.LibraryManager) {
	fmt.Fprintln(out, "\nImported books:")
	books, err := manager.GetAllBooks(ctx)
	if err != nil {
		fmt.Fprintf(out, "Error retrieving books: %v\n", err)
		return
	}
	fmt.Fprintf(out, "%-3s %-50s %-30s %s\n", "ID", "Title", "Author", "Genre")
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for _, book := range books {
		fmt.Fprintf(out, "%-3d %-50s %-30s %s\n", book.ID, truncateString(book.Title, 50), truncateString(book.Author, 30), book.Genre)
	}
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
