package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/submission"
)

type fixture struct {
	db    *sql.DB
	svc   *Service
	admin *access.Identity
	staff *access.Identity
}

func setup(t *testing.T, strict bool) fixture {
	log.SetOutput(io.Discard)

	db, err := database.Open(filepath.Join(t.TempDir(), "service.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := New(db, access.BcryptHasher{Cost: bcrypt.MinCost}, strict)
	ctx := context.Background()

	_, err = svc.Users.EnsureAdmin(ctx, "admin", "admin123")
	require.NoError(t, err)
	admin, err := svc.Users.Authenticate(ctx, "admin", "admin123")
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, &admin, "bob", "pw", access.Staff)
	require.NoError(t, err)
	staff, err := svc.Users.Authenticate(ctx, "bob", "pw")
	require.NoError(t, err)

	return fixture{db: db, svc: svc, admin: &admin, staff: &staff}
}

func visitForm(t *testing.T, f fixture) model.Form {
	form, err := f.svc.CreateForm(context.Background(), f.admin, "Site visits", []model.FieldSpec{
		{Label: "Site", Type: model.FieldText, Required: true},
		{Label: "Issues", Type: model.FieldCheckbox, Options: model.Options{"x", "y"}},
		{Label: "Staff", Type: model.FieldNumber},
	})
	require.NoError(t, err)
	return form
}

func count(t *testing.T, db *sql.DB, table string) int {
	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func TestSubmitAndExport(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	form := visitForm(t, f)

	inputs := []submission.Input{
		{"Site": {"North"}, "Issues": {"x", "y"}, "Staff": {"3"}},
		{"Site": {"South"}},
		{"Issues": {"y"}, "Unknown": {"dropped"}},
		{"Site": {"East"}, "Staff": {"1"}},
		{},
	}
	for _, in := range inputs {
		sub, err := f.svc.Submit(ctx, f.staff, form.ID, in)
		require.NoError(t, err)
		assert.Equal(t, "bob", sub.Username)
		assert.NotContains(t, sub.Document, "Unknown")
	}

	got, grid, err := f.svc.Export(ctx, f.admin, form.ID)
	require.NoError(t, err)
	assert.Equal(t, "Site visits", got.Name)
	require.Len(t, grid, 6)
	assert.Equal(t, []string{"Site", "Issues", "Staff"}, grid.Header())
	assert.Equal(t, []string{"North", "x, y", "3"}, grid.Rows()[0])
	assert.Equal(t, []string{"", "", ""}, grid.Rows()[4])

	view, err := f.svc.FormSubmissions(ctx, f.admin, form.ID)
	require.NoError(t, err)
	require.Len(t, view.Submissions, 5)
	assert.Equal(t, grid.Rows(), view.Rows)
	assert.Equal(t, submission.KindList, view.Submissions[1].Document["Issues"].Kind())
	assert.Empty(t, view.Submissions[1].Document["Issues"].Items())

	mine, err := f.svc.MySubmissions(ctx, f.staff)
	require.NoError(t, err)
	assert.Len(t, mine, 5)
}

func TestEditFormKeepsOldSubmissions(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	form := visitForm(t, f)

	_, err := f.svc.Submit(ctx, f.staff, form.ID, submission.Input{"Site": {"North"}, "Staff": {"2"}})
	require.NoError(t, err)

	edited, err := f.svc.EditForm(ctx, f.admin, form.ID, "Visits", []model.FieldSpec{
		{ID: form.Fields[0].ID, Label: "Site", Type: model.FieldText},
		{Label: "Weather", Type: model.FieldText},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Site", "Weather"}, edited.Labels())

	_, grid, err := f.svc.Export(ctx, f.admin, form.ID)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Site", "Weather"},
		{"North", ""},
	}, [][]string(grid))
}

func TestUnauthenticatedNeverReadsOrWrites(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	form := visitForm(t, f)

	forms, err := f.svc.ListForms(ctx, nil)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.Nil(t, forms)

	got, err := f.svc.GetForm(ctx, nil, form.ID)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.Zero(t, got)

	_, err = f.svc.CreateForm(ctx, nil, "Sneaky", nil)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.svc.Submit(ctx, nil, form.ID, submission.Input{"Site": {"x"}})
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, grid, err := f.svc.Export(ctx, nil, form.ID)
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.Nil(t, grid)

	assert.ErrorIs(t, f.svc.DeleteForm(ctx, nil, form.ID), model.ErrUnauthorized)

	assert.Equal(t, 1, count(t, f.db, "form"))
	assert.Equal(t, 3, count(t, f.db, "field"))
	assert.Equal(t, 0, count(t, f.db, "submission"))
}

func TestStaffCannotRunAdminOperations(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	form := visitForm(t, f)

	_, err := f.svc.CreateForm(ctx, f.staff, "Mine", nil)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.svc.EditForm(ctx, f.staff, form.ID, "Renamed", nil)
	assert.ErrorIs(t, err, model.ErrForbidden)

	assert.ErrorIs(t, f.svc.DeleteForm(ctx, f.staff, form.ID), model.ErrForbidden)

	_, err = f.svc.FormSubmissions(ctx, f.staff, form.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, _, err = f.svc.Export(ctx, f.staff, form.ID)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.svc.CreateUser(ctx, f.staff, "eve", "pw", access.Admin)
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = f.svc.Dashboard(ctx, f.staff)
	assert.ErrorIs(t, err, model.ErrForbidden)

	got, err := f.svc.GetForm(ctx, f.staff, form.ID)
	require.NoError(t, err)
	assert.Equal(t, "Site visits", got.Name)
	assert.Len(t, got.Fields, 3)
	assert.Equal(t, 2, count(t, f.db, "user"))

	_, err = f.svc.MySubmissions(ctx, f.admin)
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestSubmitUnknownForm(t *testing.T) {
	f := setup(t, false)

	_, err := f.svc.Submit(context.Background(), f.staff, 404, submission.Input{})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStrictSubmit(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	form := visitForm(t, f)

	_, err := f.svc.Submit(ctx, f.staff, form.ID, submission.Input{"Staff": {"lots"}})
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, 0, count(t, f.db, "submission"))

	_, err = f.svc.Submit(ctx, f.staff, form.ID, submission.Input{"Site": {"North"}, "Staff": {"4"}})
	assert.NoError(t, err)
}

func TestLenientSubmitLogsGaps(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	form := visitForm(t, f)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(log.InfoLevel)

	_, err := f.svc.Submit(ctx, f.staff, form.ID, submission.Input{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `\"Site\" is required`)
}

func TestMalformedDocumentIsSurfaced(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	form := visitForm(t, f)

	_, err := f.db.Exec(
		"INSERT INTO submission (form_id, user_id, created_at, data) VALUES (?, ?, CURRENT_TIMESTAMP, 'garbage')",
		form.ID, f.staff.UserID,
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	log.SetOutput(&buf)

	_, _, err = f.svc.Export(ctx, f.admin, form.ID)
	assert.ErrorIs(t, err, model.ErrMalformedDocument)
	assert.Contains(t, buf.String(), "submission.decode")
}

func TestDashboard(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	form := visitForm(t, f)

	_, err := f.svc.Submit(ctx, f.admin, form.ID, submission.Input{"Site": {"HQ"}})
	require.NoError(t, err)

	d, err := f.svc.Dashboard(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, d.Forms, 1)
	assert.Len(t, d.Users, 2)
	assert.Equal(t, 1, d.Submissions)
}
