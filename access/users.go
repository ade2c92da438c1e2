package access

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
)

// Users is the user table: credentials and roles.
type Users struct {
	db     *sql.DB
	hasher Hasher

	decoyOnce sync.Once
	decoy     []byte
}

func NewUsers(db *sql.DB, hasher Hasher) *Users {
	return &Users{db: db, hasher: hasher}
}

func (u *Users) Create(ctx context.Context, username, password string, role Role) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, errors.Wrap(model.ErrInvalidInput, "username and password are required")
	}
	if role != Admin && role != Staff {
		return model.User{}, errors.Wrapf(model.ErrInvalidInput, "unknown role %d", role)
	}

	hash, err := u.hasher.Hash([]byte(password))
	if err != nil {
		return model.User{}, errors.Wrap(err, "hash password")
	}

	user := model.User{Username: username, Role: role.String()}
	err = u.db.QueryRowContext(ctx, `
		INSERT INTO user (username, password_hash, role) VALUES (?, ?, ?)
		RETURNING id`,
		username,
		hash,
		user.Role,
	).Scan(&user.ID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return model.User{}, errors.Wrapf(model.ErrConflict, "username %q is taken", username)
		}
		return model.User{}, errors.Wrap(err, "insert user")
	}
	return user, nil
}

// Authenticate verifies a password. Unknown users and wrong passwords both give ErrUnauthorized,
// and both pay for a hash comparison.
func (u *Users) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	var (
		id   Identity
		hash []byte
		role string
	)
	err := u.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role FROM user WHERE username = ?`,
		username,
	).Scan(&id.UserID, &id.Username, &hash, &role)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		u.hasher.Compare(u.decoyHash(), []byte(password))
		return Identity{}, errors.Wrapf(model.ErrUnauthorized, "unknown user %q", username)
	case err != nil:
		return Identity{}, errors.Wrap(err, "select user")
	}

	if err := u.hasher.Compare(hash, []byte(password)); err != nil {
		return Identity{}, errors.Wrapf(model.ErrUnauthorized, "bad password for %q", username)
	}

	id.Role, err = ParseRole(role)
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Find loads the identity of a user without checking credentials.
func (u *Users) Find(ctx context.Context, username string) (Identity, error) {
	var (
		id   Identity
		role string
	)
	err := u.db.QueryRowContext(ctx, `
		SELECT id, username, role FROM user WHERE username = ?`,
		username,
	).Scan(&id.UserID, &id.Username, &role)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Identity{}, errors.Wrapf(model.ErrNotFound, "user %q", username)
	case err != nil:
		return Identity{}, errors.Wrap(err, "select user")
	}

	id.Role, err = ParseRole(role)
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

func (u *Users) List(ctx context.Context) ([]model.User, error) {
	rows, err := u.db.QueryContext(ctx, `
		SELECT id, username, role FROM user ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Role); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		users = append(users, user)
	}
	return users, errors.Wrap(rows.Err(), "select users")
}

// EnsureAdmin creates the bootstrap admin unless a user with that name already exists.
func (u *Users) EnsureAdmin(ctx context.Context, username, password string) (created bool, err error) {
	_, err = u.Find(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, model.ErrNotFound):
		return false, err
	}

	_, err = u.Create(ctx, username, password, Admin)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (u *Users) decoyHash() []byte {
	u.decoyOnce.Do(func() {
		u.decoy, _ = u.hasher.Hash([]byte("decoy password"))
	})
	return u.decoy
}
