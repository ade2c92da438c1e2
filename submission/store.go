package submission

import (
	"context"
	"database/sql"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
)

// Submission is one stored, immutable filling of a form.
type Submission struct {
	ID        int64     `json:"id"`
	FormID    int64     `json:"form_id"`
	FormName  string    `json:"form_name"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	Document  Document  `json:"data"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Create(ctx context.Context, formID, userID int64, doc Document) (Submission, error) {
	data, err := Marshal(doc)
	if err != nil {
		return Submission{}, err
	}

	sub := Submission{FormID: formID, UserID: userID, CreatedAt: s.now(), Document: doc}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO submission (form_id, user_id, created_at, data) VALUES (?, ?, ?, ?)
		RETURNING id`,
		formID,
		userID,
		sub.CreatedAt,
		data,
	).Scan(&sub.ID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return Submission{}, errors.Wrapf(model.ErrNotFound, "form %d or user %d", formID, userID)
		}
		return Submission{}, errors.Wrap(err, "insert submission")
	}
	return sub, nil
}

// ListByForm returns the submissions of a form in the order they were made.
func (s *Store) ListByForm(ctx context.Context, formID int64) ([]Submission, error) {
	return s.list(ctx, "s.form_id = ?", formID)
}

// ListByUser returns what one user submitted, across all forms, in the order they were made.
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]Submission, error) {
	return s.list(ctx, "s.user_id = ?", userID)
}

func (s *Store) Count(ctx context.Context) (n int, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT count(*) FROM submission").Scan(&n)
	return n, errors.Wrap(err, "count submissions")
}

func (s *Store) list(ctx context.Context, where string, arg any) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			s.id, s.form_id, f.name, s.user_id, u.username, s.created_at, s.data
		FROM submission s
		INNER JOIN form f ON (f.id = s.form_id)
		INNER JOIN user u ON (u.id = s.user_id)
		WHERE `+where+`
		ORDER BY s.id`,
		arg,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select submissions")
	}
	defer rows.Close()

	subs := []Submission{}
	for rows.Next() {
		var (
			sub  Submission
			data string
		)
		err = rows.Scan(&sub.ID, &sub.FormID, &sub.FormName, &sub.UserID, &sub.Username, &sub.CreatedAt, &data)
		if err != nil {
			return nil, errors.Wrap(err, "scan submission")
		}

		sub.Document, err = Decode(data)
		if err != nil {
			return nil, errors.Wrapf(err, "submission %d", sub.ID)
		}
		subs = append(subs, sub)
	}
	return subs, errors.Wrap(rows.Err(), "select submissions")
}
