package library

import (
	"context"
	"database/sql"
	"errors"
)

const userColumns = `user_id, name, email, password, role`

// AddUser inserts a user whose password has already been hashed.
func (d *Database) AddUser(ctx context.Context, name, email, passwordHash string, role Role) (int64, error) {
	id, err := d.insert(ctx, d.db, "user_id",
		`INSERT INTO users(name, email, password, role) VALUES(?, ?, ?, ?)`,
		name, email, passwordHash, string(role))
	if isUniqueViolation(err) {
		return 0, ErrEmailTaken
	}
	if err != nil {
		return 0, d.storageErr("add user", err)
	}
	return id, nil
}

// UpdateUser rewrites name, email and role. The password column is changed
// only through UpdatePassword.
func (d *Database) UpdateUser(ctx context.Context, u *User) error {
	_, err := d.db.ExecContext(ctx,
		d.rebind(`UPDATE users SET name=?, email=?, role=? WHERE user_id=?`),
		u.Name, u.Email, string(u.Role), u.ID)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return d.storageErr("update user", err)
	}
	return nil
}

// UpdatePassword stores a new password hash for the user.
func (d *Database) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := d.db.ExecContext(ctx,
		d.rebind(`UPDATE users SET password=? WHERE user_id=?`), passwordHash, userID)
	if err != nil {
		return d.storageErr("update password", err)
	}
	return nil
}

// DeleteUser removes a user. Their loan history cascades.
func (d *Database) DeleteUser(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, d.rebind(`DELETE FROM users WHERE user_id=?`), id)
	if err != nil {
		return d.storageErr("delete user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetUser fetches a single user.
func (d *Database) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := d.db.GetContext(ctx, &u, d.rebind(`SELECT `+userColumns+` FROM users WHERE user_id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, d.storageErr("get user", err)
	}
	return &u, nil
}

// GetUserByEmail fetches a user by exact email.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := d.db.GetContext(ctx, &u, d.rebind(`SELECT `+userColumns+` FROM users WHERE email=?`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, d.storageErr("get user by email", err)
	}
	return &u, nil
}

// GetAllUsers returns all users ordered by name.
func (d *Database) GetAllUsers(ctx context.Context) ([]*User, error) {
	users := []*User{}
	if err := d.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY name, user_id`); err != nil {
		return nil, d.storageErr("list users", err)
	}
	return users, nil
}

// EmailExists reports whether any user is registered with email.
func (d *Database) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, d.rebind(`SELECT COUNT(*) FROM users WHERE email=?`), email); err != nil {
		return false, d.storageErr("check email", err)
	}
	return n > 0, nil
}

// CountAdmins returns the number of users holding the admin role.
func (d *Database) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := d.db.GetContext(ctx, &n, d.rebind(`SELECT COUNT(*) FROM users WHERE role=?`), string(RoleAdmin)); err != nil {
		return 0, d.storageErr("count admins", err)
	}
	return n, nil
}
