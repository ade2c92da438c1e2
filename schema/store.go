// Package schema persists forms and their ordered field lists.
package schema

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/model"
)

// Policy holds the optional schema checks. The zero value accepts duplicate and
// empty labels, and choice fields without options.
type Policy struct {
	// UniqueLabels rejects empty labels and labels repeated within a form.
	UniqueLabels bool
	// RequireOptions rejects choice fields without options.
	RequireOptions bool
}

type Store struct {
	db     *sql.DB
	policy Policy
	now    func() time.Time
}

func NewStore(db *sql.DB, policy Policy) *Store {
	return &Store{
		db:     db,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateForm inserts a form and all of its fields in one transaction.
func (s *Store) CreateForm(ctx context.Context, name string, specs []model.FieldSpec) (model.Form, error) {
	name, err := checkName(name)
	if err != nil {
		return model.Form{}, err
	}
	specs, err = s.checkFields(specs)
	if err != nil {
		return model.Form{}, err
	}
	for _, spec := range specs {
		if spec.ID != 0 {
			return model.Form{}, errors.Wrapf(model.ErrInvalidInput, "new form cannot reference field %d", spec.ID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Form{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	form := model.Form{Name: name, CreatedAt: s.now()}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO form (name, created_at) VALUES (?, ?)
		RETURNING id`,
		form.Name,
		form.CreatedAt,
	).Scan(&form.ID)
	if err != nil {
		return model.Form{}, errors.Wrap(err, "insert form")
	}

	form.Fields, err = insertFields(ctx, tx, form.ID, specs)
	if err != nil {
		return model.Form{}, err
	}

	if err = tx.Commit(); err != nil {
		return model.Form{}, errors.Wrap(err, "commit form")
	}
	return form, nil
}

func (s *Store) GetForm(ctx context.Context, id int64) (model.Form, error) {
	return getForm(ctx, s.db, id)
}

// ListForms returns every form with its fields, oldest first.
func (s *Store) ListForms(ctx context.Context) ([]model.Form, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			f.id, f.name, f.created_at,
			d.id, d.label, d.type, d.options, d.required
		FROM form f
		LEFT OUTER JOIN field d ON (f.id = d.form_id)
		ORDER BY f.id, d.id`)
	if err != nil {
		return nil, errors.Wrap(err, "select forms")
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		var (
			form  model.Form
			field nullableField
		)
		err = rows.Scan(
			&form.ID, &form.Name, &form.CreatedAt,
			&field.ID, &field.Label, &field.Type, &field.Options, &field.Required,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan form")
		}

		last := len(forms) - 1
		if last < 0 || forms[last].ID != form.ID {
			form.Fields = []model.Field{}
			forms = append(forms, form)
			last++
		}
		if field.ID.Valid {
			f, err := field.toField(form.ID)
			if err != nil {
				return nil, err
			}
			forms[last].Fields = append(forms[last].Fields, f)
		}
	}
	return forms, errors.Wrap(rows.Err(), "select forms")
}

// ReplaceFields makes edits the complete field set of a form.
//
// Edits with an ID update that field in place, edits without one are inserted
// after the kept fields. Every existing field not named by an edit is deleted,
// whether or not submissions still carry its label.
func (s *Store) ReplaceFields(ctx context.Context, formID int64, edits []model.FieldSpec) (model.Form, error) {
	return s.edit(ctx, formID, nil, edits)
}

// EditForm renames a form and replaces its fields in one transaction, see ReplaceFields.
func (s *Store) EditForm(ctx context.Context, formID int64, name string, edits []model.FieldSpec) (model.Form, error) {
	return s.edit(ctx, formID, &name, edits)
}

func (s *Store) edit(ctx context.Context, formID int64, name *string, edits []model.FieldSpec) (model.Form, error) {
	var newName string
	if name != nil {
		var err error
		if newName, err = checkName(*name); err != nil {
			return model.Form{}, err
		}
	}
	edits, err := s.checkFields(edits)
	if err != nil {
		return model.Form{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Form{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	current, err := getForm(ctx, tx, formID)
	if err != nil {
		return model.Form{}, err
	}

	if name != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE form SET name = ? WHERE id = ?`,
			newName,
			formID,
		)
		if err != nil {
			return model.Form{}, errors.Wrap(err, "rename form")
		}
	}

	existing := make(map[int64]bool, len(current.Fields))
	for _, f := range current.Fields {
		existing[f.ID] = true
	}

	keep := make(map[int64]bool, len(edits))
	var updates, inserts []model.FieldSpec
	for _, e := range edits {
		if e.ID == 0 {
			inserts = append(inserts, e)
			continue
		}
		if !existing[e.ID] {
			return model.Form{}, errors.Wrapf(model.ErrNotFound, "field %d of form %d", e.ID, formID)
		}
		if keep[e.ID] {
			return model.Form{}, errors.Wrapf(model.ErrInvalidInput, "field %d listed twice", e.ID)
		}
		keep[e.ID] = true
		updates = append(updates, e)
	}

	del, err := tx.PrepareContext(ctx, `
		DELETE FROM field WHERE id = ? AND form_id = ?`)
	if err != nil {
		return model.Form{}, errors.Wrap(err, "prepare delete field")
	}
	defer del.Close()

	for _, f := range current.Fields {
		if keep[f.ID] {
			continue
		}
		if _, err = del.ExecContext(ctx, f.ID, formID); err != nil {
			return model.Form{}, errors.Wrapf(err, "delete field %d", f.ID)
		}
	}

	upd, err := tx.PrepareContext(ctx, `
		UPDATE field
		SET label = ?, type = ?, options = ?, required = ?
		WHERE id = ? AND form_id = ?`)
	if err != nil {
		return model.Form{}, errors.Wrap(err, "prepare update field")
	}
	defer upd.Close()

	for _, e := range updates {
		opts, err := encodeOptions(e.Options)
		if err != nil {
			return model.Form{}, err
		}
		if _, err = upd.ExecContext(ctx, e.Label, e.Type, opts, e.Required, e.ID, formID); err != nil {
			return model.Form{}, errors.Wrapf(err, "update field %d", e.ID)
		}
	}

	if _, err = insertFields(ctx, tx, formID, inserts); err != nil {
		return model.Form{}, err
	}

	form, err := getForm(ctx, tx, formID)
	if err != nil {
		return model.Form{}, err
	}

	if err = tx.Commit(); err != nil {
		return model.Form{}, errors.Wrap(err, "commit fields")
	}
	return form, nil
}

// DeleteForm removes a form, its fields and its submissions.
func (s *Store) DeleteForm(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM form WHERE id = ?`,
		id,
	)
	if err != nil {
		return errors.Wrap(err, "delete form")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete form")
	}
	if n < 1 {
		return errors.Wrapf(model.ErrNotFound, "form %d", id)
	}
	return nil
}

func checkName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Wrap(model.ErrInvalidInput, "form name is required")
	}
	return name, nil
}

// checkFields normalizes field specs, then applies the policy.
func (s *Store) checkFields(specs []model.FieldSpec) ([]model.FieldSpec, error) {
	out := make([]model.FieldSpec, len(specs))
	var merr *multierror.Error
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		spec = spec.Normalize()
		out[i] = spec

		if s.policy.UniqueLabels {
			switch {
			case spec.Label == "":
				merr = multierror.Append(merr, errors.Errorf("field #%d has no label", i+1))
			case seen[spec.Label]:
				merr = multierror.Append(merr, errors.Errorf("label %q is used twice", spec.Label))
			}
			seen[spec.Label] = true
		}
		if s.policy.RequireOptions && spec.Type.Choice() && len(spec.Options) == 0 {
			merr = multierror.Append(merr, errors.Errorf("%s field %q has no options", spec.Type, spec.Label))
		}
	}
	if err := model.Problems(merr); err != nil {
		return nil, err
	}
	return out, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getForm(ctx context.Context, q queryer, id int64) (model.Form, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT
			f.id, f.name, f.created_at,
			d.id, d.label, d.type, d.options, d.required
		FROM form f
		LEFT OUTER JOIN field d ON (f.id = d.form_id)
		WHERE f.id = ?
		ORDER BY d.id`,
		id,
	)
	if err != nil {
		return model.Form{}, errors.Wrap(err, "select form")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.Form{}, errors.Wrap(err, "select form")
		}
		return model.Form{}, errors.Wrapf(model.ErrNotFound, "form %d", id)
	}

	form := model.Form{Fields: []model.Field{}}
	for {
		var field nullableField
		err = rows.Scan(
			&form.ID, &form.Name, &form.CreatedAt,
			&field.ID, &field.Label, &field.Type, &field.Options, &field.Required,
		)
		if err != nil {
			return model.Form{}, errors.Wrap(err, "scan form")
		}

		if field.ID.Valid {
			f, err := field.toField(form.ID)
			if err != nil {
				return model.Form{}, err
			}
			form.Fields = append(form.Fields, f)
		}

		if !rows.Next() {
			break
		}
	}
	return form, errors.Wrap(rows.Err(), "select form")
}

func insertFields(ctx context.Context, tx *sql.Tx, formID int64, specs []model.FieldSpec) ([]model.Field, error) {
	fields := make([]model.Field, 0, len(specs))
	if len(specs) == 0 {
		return fields, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO field (form_id, label, type, options, required)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare insert field")
	}
	defer stmt.Close()

	for _, spec := range specs {
		opts, err := encodeOptions(spec.Options)
		if err != nil {
			return nil, err
		}

		f := model.Field{
			FormID:   formID,
			Label:    spec.Label,
			Type:     spec.Type,
			Options:  spec.Options,
			Required: spec.Required,
		}
		err = stmt.QueryRowContext(ctx, formID, f.Label, f.Type, opts, f.Required).Scan(&f.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "insert field %q", f.Label)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// nullableField scans the field half of a form LEFT JOIN field row.
type nullableField struct {
	ID       sql.NullInt64
	Label    sql.NullString
	Type     sql.NullString
	Options  sql.NullString
	Required sql.NullBool
}

func (n nullableField) toField(formID int64) (model.Field, error) {
	f := model.Field{
		ID:       n.ID.Int64,
		FormID:   formID,
		Label:    n.Label.String,
		Type:     model.FieldType(n.Type.String),
		Required: n.Required.Bool,
	}
	if n.Options.String != "" {
		if err := json.Unmarshal([]byte(n.Options.String), &f.Options); err != nil {
			return model.Field{}, errors.Wrapf(err, "parse options of field %d", f.ID)
		}
	}
	return f, nil
}

func encodeOptions(opts model.Options) (string, error) {
	if len(opts) == 0 {
		return "", nil
	}
	b, err := json.Marshal([]string(opts))
	if err != nil {
		return "", errors.Wrap(err, "encode options")
	}
	return string(b), nil
}
