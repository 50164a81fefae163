package library

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)

	first, err := mgr.Register(ctx, "Ada", "ada@example.com", "Secret123", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, first.Role)

	second, err := mgr.Register(ctx, "Bob", "bob@example.com", "Secret123", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, second.Role)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)
	_, err := mgr.Register(ctx, "Ada", "ada@example.com", "Secret123", "Secret123")
	require.NoError(t, err)

	cases := []struct {
		name, user, email, pass, confirm string
		want                             error
	}{
		{"blank name", " ", "x@example.com", "Secret123", "Secret123", ErrRequiredField},
		{"bad email", "X", "not-an-email", "Secret123", "Secret123", ErrInvalidEmail},
		{"mismatch", "X", "x@example.com", "Secret123", "Secret124", ErrPasswordMismatch},
		{"weak", "X", "x@example.com", "secret", "secret", ErrWeakPassword},
		{"taken", "X", "ada@example.com", "Secret123", "Secret123", ErrEmailTaken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mgr.Register(ctx, tc.user, tc.email, tc.pass, tc.confirm)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)

	id, err := mgr.CreateUser(ctx, "Ada", "ada@example.com", "Secret123", "librarian")
	require.NoError(t, err)
	u, err := mgr.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, RoleMember, u.Role, "unknown role falls back to member")
	assert.NotEqual(t, "Secret123", u.Password)
	assert.True(t, CheckPassword("Secret123", u.Password))

	_, err = mgr.CreateUser(ctx, "Ada", "ada@example.com", "Secret123", "admin")
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = mgr.CreateUser(ctx, "Ada", "ada2@example.com", "weak", "admin")
	assert.ErrorIs(t, err, ErrWeakPassword)

	isAdmin, err := mgr.IsUserAdmin(ctx, id)
	require.NoError(t, err)
	assert.False(t, isAdmin)
	isAdmin, err = mgr.IsUserAdmin(ctx, 999)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestUpdateUserKeepsLastAdmin(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)
	admin, err := mgr.Register(ctx, "Ada", "ada@example.com", "Secret123", "Secret123")
	require.NoError(t, err)

	err = mgr.UpdateUser(ctx, admin.ID, "Ada", "ada@example.com", "member")
	assert.ErrorIs(t, err, ErrLastAdmin)

	bobID, err := mgr.CreateUser(ctx, "Bob", "bob@example.com", "Secret123", "admin")
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateUser(ctx, admin.ID, "Ada L.", "ada@example.com", "member"))

	n, err := mgr.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, mgr.UpdateUser(ctx, bobID, "Bob", "ada@example.com", "admin"), ErrEmailTaken)
	assert.ErrorIs(t, mgr.UpdateUser(ctx, bobID, "Bob", "bad", "admin"), ErrInvalidEmail)
	assert.ErrorIs(t, mgr.UpdateUser(ctx, 999, "X", "x@example.com", "admin"), ErrUserNotFound)
}

func TestDeleteUserRules(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)
	admin, err := mgr.Register(ctx, "Ada", "ada@example.com", "Secret123", "Secret123")
	require.NoError(t, err)
	member, err := mgr.Register(ctx, "Bob", "bob@example.com", "Secret123", "Secret123")
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.DeleteUser(ctx, admin.ID), ErrLastAdmin)
	still, err := mgr.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, still.Role)
	assert.ErrorIs(t, mgr.DeleteUser(ctx, 999), ErrUserNotFound)

	bookID, _ := mgr.AddBook(ctx, "Dune", "Frank Herbert", "Science Fiction")
	loanID, err := mgr.BorrowBook(ctx, bookID, member.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.DeleteUser(ctx, member.ID), ErrUserHasLoans)

	require.NoError(t, mgr.ReturnLoan(ctx, loanID))
	require.NoError(t, mgr.DeleteUser(ctx, member.ID))
	_, err = mgr.GetUser(ctx, member.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)
	_, err := mgr.Register(ctx, "Ada", "ada@example.com", "Secret123", "Secret123")
	require.NoError(t, err)

	sess, err := mgr.Login(ctx, "ada@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "Ada", sess.User.Name)
	assert.True(t, sess.IsAdmin())
	assert.NotEqual(t, uuid.Nil, sess.ID)

	for _, tc := range []struct{ email, pass string }{
		{"ada@example.com", "Wrong1234"},
		{"nobody@example.com", "Secret123"},
		{"not-an-email", "Secret123"},
		{"ada@example.com", ""},
	} {
		_, err := mgr.Login(ctx, tc.email, tc.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "%s/%s", tc.email, tc.pass)
	}
}

func TestChangePasswordAndProfile(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)
	_, err := mgr.Register(ctx, "Ada", "ada@example.com", "Secret123", "Secret123")
	require.NoError(t, err)
	_, err = mgr.Register(ctx, "Bob", "bob@example.com", "Secret123", "Secret123")
	require.NoError(t, err)
	sess, err := mgr.Login(ctx, "bob@example.com", "Secret123")
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.ChangePassword(ctx, sess, "Wrong1234", "Better456", "Better456"), ErrInvalidCredentials)
	assert.ErrorIs(t, mgr.ChangePassword(ctx, sess, "Secret123", "Better456", "Better457"), ErrPasswordMismatch)
	require.NoError(t, mgr.ChangePassword(ctx, sess, "Secret123", "Better456", "Better456"))

	_, err = mgr.Login(ctx, "bob@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = mgr.Login(ctx, "bob@example.com", "Better456")
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.UpdateProfile(ctx, sess, "Bob", "ada@example.com"), ErrEmailTaken)
	require.NoError(t, mgr.UpdateProfile(ctx, sess, "Robert", "robert@example.com"))
	assert.Equal(t, "Robert", sess.User.Name)
	assert.Equal(t, RoleMember, sess.User.Role)

	u, err := mgr.GetUserByEmail(ctx, "robert@example.com")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, u.ID)
	_, err = mgr.GetUserByEmail(ctx, "robert")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	assert.ErrorIs(t, mgr.UpdateProfile(ctx, nil, "x", "x@example.com"), ErrInvalidSession)
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)
	u, err := mgr.Register(ctx, "Ada", "ada@example.com", "Secret123", "Secret123")
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.ResetPassword(ctx, u.ID, "short"), ErrWeakPassword)
	assert.ErrorIs(t, mgr.ResetPassword(ctx, 999, "Reset1234"), ErrUserNotFound)
	require.NoError(t, mgr.ResetPassword(ctx, u.ID, "Reset1234"))

	_, err = mgr.Login(ctx, "ada@example.com", "Reset1234")
	require.NoError(t, err)
}

func TestResumeReloadsUser(t *testing.T) {
	ctx := context.Background()
	signer, err := NewSessionSigner([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	mgr := newManager(t, WithSessionSigner(signer))

	_, err = mgr.Register(ctx, "Ada", "ada@example.com", "Secret123", "Secret123")
	require.NoError(t, err)
	_, err = mgr.Register(ctx, "Bob", "bob@example.com", "Secret123", "Secret123")
	require.NoError(t, err)

	sess, err := mgr.Login(ctx, "bob@example.com", "Secret123")
	require.NoError(t, err)
	token, err := mgr.SignSession(sess)
	require.NoError(t, err)

	require.NoError(t, mgr.UpdateUser(ctx, sess.User.ID, "Bob", "bob@example.com", "admin"))

	resumed, err := mgr.Resume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, resumed.ID)
	assert.True(t, resumed.IsAdmin(), "role change visible after resume")

	require.NoError(t, mgr.Database().DeleteUser(ctx, sess.User.ID))
	_, err = mgr.Resume(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = newManager(t).Resume(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession, "no signer configured")
}
