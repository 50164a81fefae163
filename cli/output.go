package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"library-desk/library"
)

const dateLayout = "2006-01-02"

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens s to fit a fixed-width column.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printBooks(w io.Writer, books []*library.Book) {
	fmt.Fprintf(w, "%-5s %-30s %-25s %-16s %s\n", "ID", "Title", "Author", "Genre", "Availability")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, b := range books {
		fmt.Fprintln(w, prettyBook(b))
	}
}

func prettyBook(b *library.Book) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-16s %s",
		b.ID, truncate(b.Title, 30), truncate(b.Author, 25), truncate(b.Genre, 16), b.Availability)
}

func printUsers(w io.Writer, users []*library.User) {
	fmt.Fprintf(w, "%-5s %-25s %-30s %s\n", "ID", "Name", "Email", "Role")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, u := range users {
		fmt.Fprintf(w, "%-5d %-25s %-30s %s\n", u.ID, truncate(u.Name, 25), truncate(u.Email, 30), u.Role)
	}
}

func printLoans(w io.Writer, loans []*library.Loan) {
	fmt.Fprintf(w, "%-5s %-30s %-20s %-10s %-10s %s\n", "ID", "Book", "Borrower", "Loaned", "Due", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 95))
	for _, l := range loans {
		fmt.Fprintf(w, "%-5d %-30s %-20s %-10s %-10s %s\n",
			l.ID, truncate(l.BookTitle, 30), truncate(l.UserName, 20),
			l.LoanDate.Format(dateLayout), formatDate(l.ReturnDate), loanStatus(l))
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

func loanStatus(l *library.Loan) string {
	if l.Returned {
		return "returned"
	}
	return "open"
}

func printUser(w io.Writer, u *library.User) {
	fmt.Fprintf(w, "ID:    %d\nName:  %s\nEmail: %s\nRole:  %s\n", u.ID, u.Name, u.Email, u.Role)
}
