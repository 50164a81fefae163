package library

import "time"

// Availability is the cached circulation status of a book. It mirrors whether an
// open loan exists for the book and is only changed by the loan workflow.
type Availability string

const (
	Available Availability = "available"
	OnLoan    Availability = "on-loan"
	// Returned is accepted when reading rows but never written by this package.
	Returned Availability = "returned"
)

// Role of a library user.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// ParseRole maps free text to a known role. Anything unrecognised becomes a member.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleMember
}

// Genres is the option list offered when adding or filtering books. Genre is
// free text in storage, so other values are accepted too.
var Genres = []string{
	"Classics",
	"Fantasy",
	"Science Fiction",
	"Romance",
	"Adventure",
	"Satire",
	"Children's",
}

// Book represents a catalog entry and its current availability.
type Book struct {
	ID           int64        `json:"id" db:"book_id"`
	Title        string       `json:"title" db:"title"`
	Author       string       `json:"author" db:"author"`
	Genre        string       `json:"genre" db:"genre"`
	Availability Availability `json:"availability" db:"availability"`
}

// IsAvailable reports whether the book can be borrowed.
func (b *Book) IsAvailable() bool { return b.Availability == Available }

// User represents a registered library user.
type User struct {
	ID       int64  `json:"id" db:"user_id"`
	Name     string `json:"name" db:"name"`
	Email    string `json:"email" db:"email"`
	Password string `json:"-" db:"password"` // Don't serialize password hash
	Role     Role   `json:"role" db:"role"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// Loan records one borrowing of a book by a user. ReturnDate holds the due date
// while the loan is open and the actual return time once Returned is set.
type Loan struct {
	ID         int64      `json:"id" db:"loan_id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	LoanDate   time.Time  `json:"loan_date" db:"loan_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Returned   bool       `json:"returned" db:"is_returned"`

	// Populated by listing queries only.
	BookTitle string `json:"book_title,omitempty" db:"book_title"`
	UserName  string `json:"user_name,omitempty" db:"user_name"`
}

// IsOpen reports whether the loan still holds its book.
func (l *Loan) IsOpen() bool { return !l.Returned }

// BookQuery describes a catalog search. When none of Title, Author or Genre is
// set every column is searched.
type BookQuery struct {
	Text          string
	Title         bool
	Author        bool
	Genre         bool
	OnlyAvailable bool
}
