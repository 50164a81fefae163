package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	logMsgUserRegistered = "user registered"
	logMsgLoginFailed    = "login failed"
	logAttrEmail         = "email"
	logAttrRole          = "role"
)

// ------------------ User administration ------------------

// CreateUser validates and stores a new user. Unknown roles become member.
func (lm *LibraryManager) CreateUser(ctx context.Context, name, email, password, role string) (int64, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if err := requireFields(name, email, password); err != nil {
		return 0, err
	}
	if err := validateEmail(email); err != nil {
		return 0, err
	}
	if err := validatePassword(password); err != nil {
		return 0, err
	}
	return lm.insertUser(ctx, name, email, password, ParseRole(role))
}

func (lm *LibraryManager) insertUser(ctx context.Context, name, email, password string, role Role) (int64, error) {
	exists, err := lm.db.EmailExists(ctx, email)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrEmailTaken
	}
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	id, err := lm.db.AddUser(ctx, name, email, hash, role)
	if err != nil {
		return 0, err
	}
	lm.logger.Info(logMsgUserRegistered, logAttrUserID, id, logAttrRole, string(role))
	return id, nil
}

// UpdateUser changes name, email and role. The last administrator cannot be demoted.
func (lm *LibraryManager) UpdateUser(ctx context.Context, id int64, name, email, role string) error {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if err := requireFields(name, email); err != nil {
		return err
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	u, err := lm.db.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := lm.ensureEmailFree(ctx, email, id); err != nil {
		return err
	}

	newRole := ParseRole(role)
	if u.IsAdmin() && newRole != RoleAdmin {
		if err := lm.ensureOtherAdmin(ctx); err != nil {
			return fmt.Errorf("demote user %d: %w", id, err)
		}
	}

	u.Name, u.Email, u.Role = name, email, newRole
	return lm.db.UpdateUser(ctx, u)
}

// DeleteUser removes a user with no open loans, refusing to remove the last administrator.
func (lm *LibraryManager) DeleteUser(ctx context.Context, id int64) error {
	u, err := lm.db.GetUser(ctx, id)
	if err != nil {
		return err
	}
	active, err := lm.db.CountActiveLoansByUser(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("delete user %d: %w", id, ErrUserHasLoans)
	}
	if u.IsAdmin() {
		if err := lm.ensureOtherAdmin(ctx); err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
	}
	return lm.db.DeleteUser(ctx, id)
}

// ResetPassword sets a new password for any user.
func (lm *LibraryManager) ResetPassword(ctx context.Context, id int64, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if _, err := lm.db.GetUser(ctx, id); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return lm.db.UpdatePassword(ctx, id, hash)
}

func (lm *LibraryManager) GetUser(ctx context.Context, id int64) (*User, error) {
	return lm.db.GetUser(ctx, id)
}

// GetUserByEmail looks a user up by email, rejecting malformed addresses first.
func (lm *LibraryManager) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	return lm.db.GetUserByEmail(ctx, email)
}

func (lm *LibraryManager) GetAllUsers(ctx context.Context) ([]*User, error) {
	return lm.db.GetAllUsers(ctx)
}

func (lm *LibraryManager) EmailExists(ctx context.Context, email string) (bool, error) {
	return lm.db.EmailExists(ctx, strings.TrimSpace(email))
}

func (lm *LibraryManager) CountAdmins(ctx context.Context) (int, error) {
	return lm.db.CountAdmins(ctx)
}

// IsUserAdmin reports whether the user exists and holds the admin role.
func (lm *LibraryManager) IsUserAdmin(ctx context.Context, id int64) (bool, error) {
	u, err := lm.db.GetUser(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

func (lm *LibraryManager) ensureOtherAdmin(ctx context.Context) error {
	admins, err := lm.db.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

func (lm *LibraryManager) ensureEmailFree(ctx context.Context, email string, ownerID int64) error {
	other, err := lm.db.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if other.ID != ownerID {
		return ErrEmailTaken
	}
	return nil
}

// ------------------ Authentication ------------------

// Register creates an account from the sign-up form. The first account in an
// empty library becomes the administrator.
func (lm *LibraryManager) Register(ctx context.Context, name, email, password, confirm string) (*User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if err := requireFields(name, email, password, confirm); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	admins, err := lm.db.CountAdmins(ctx)
	if err != nil {
		return nil, err
	}
	role := RoleMember
	if admins == 0 {
		role = RoleAdmin
	}

	id, err := lm.insertUser(ctx, name, email, password, role)
	if err != nil {
		return nil, err
	}
	return lm.db.GetUser(ctx, id)
}

// Login checks credentials and opens a session. Every failure is reported as
// ErrInvalidCredentials so callers cannot probe which emails exist.
func (lm *LibraryManager) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if !IsValidEmail(email) || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := lm.db.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		lm.logger.Warn(logMsgLoginFailed, logAttrEmail, email)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(password, u.Password) {
		lm.logger.Warn(logMsgLoginFailed, logAttrEmail, email)
		return nil, ErrInvalidCredentials
	}
	return lm.OpenSession(u), nil
}

// OpenSession starts a session for an already authenticated user, such as one
// who has just registered.
func (lm *LibraryManager) OpenSession(u *User) *Session {
	return newSession(u, lm.db.now())
}

// Resume rebuilds a session from a signed token. The user is reloaded so role
// changes made since the token was issued take effect.
func (lm *LibraryManager) Resume(ctx context.Context, token string) (*Session, error) {
	if lm.signer == nil {
		return nil, ErrInvalidSession
	}
	claims, err := lm.signer.Parse(token)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	sid, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, ErrInvalidSession
	}
	u, err := lm.db.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	sess := &Session{ID: sid, User: u}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return sess, nil
}

// SignSession encodes the session with the configured signer.
func (lm *LibraryManager) SignSession(sess *Session) (string, error) {
	if lm.signer == nil {
		return "", errors.New("no session signer configured")
	}
	return lm.signer.Sign(sess)
}

// ChangePassword replaces the session user's password after verifying the old one.
func (lm *LibraryManager) ChangePassword(ctx context.Context, sess *Session, oldPassword, newPassword, confirm string) error {
	if sess == nil || sess.User == nil {
		return ErrInvalidSession
	}
	if err := requireFields(oldPassword, newPassword, confirm); err != nil {
		return err
	}
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	u, err := lm.db.GetUser(ctx, sess.User.ID)
	if err != nil {
		return err
	}
	if !CheckPassword(oldPassword, u.Password) {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := lm.db.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	sess.User.Password = hash
	return nil
}

// UpdateProfile lets the session user change their own name and email. The
// role is never changed here.
func (lm *LibraryManager) UpdateProfile(ctx context.Context, sess *Session, name, email string) error {
	if sess == nil || sess.User == nil {
		return ErrInvalidSession
	}
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if err := requireFields(name, email); err != nil {
		return err
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	u, err := lm.db.GetUser(ctx, sess.User.ID)
	if err != nil {
		return err
	}
	if err := lm.ensureEmailFree(ctx, email, u.ID); err != nil {
		return err
	}
	u.Name, u.Email = name, email
	if err := lm.db.UpdateUser(ctx, u); err != nil {
		return err
	}
	sess.User = u
	return nil
}
