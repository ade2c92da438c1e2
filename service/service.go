// Package service runs the form builder's operations on behalf of an identity.
// Each operation checks its access requirement before it reads or writes anything.
package service

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/export"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
	"github.com/mbolis/quick-forms/schema"
	"github.com/mbolis/quick-forms/submission"
)

type Service struct {
	Forms       *schema.Store
	Submissions *submission.Store
	Users       *access.Users
	Codec       submission.Codec
}

// New wires the stores over db. Strict turns on every schema and submission check.
func New(db *sql.DB, hasher access.Hasher, strict bool) *Service {
	return &Service{
		Forms:       schema.NewStore(db, schema.Policy{UniqueLabels: strict, RequireOptions: strict}),
		Submissions: submission.NewStore(db),
		Users:       access.NewUsers(db, hasher),
		Codec:       submission.NewCodec(submission.Policy{EnforceRequired: strict, EnforceTypes: strict}),
	}
}

func (s *Service) ListForms(ctx context.Context, id *access.Identity) ([]model.Form, error) {
	if err := access.Authorize(id, access.AnyRole); err != nil {
		return nil, err
	}
	return s.Forms.ListForms(ctx)
}

func (s *Service) GetForm(ctx context.Context, id *access.Identity, formID int64) (model.Form, error) {
	if err := access.Authorize(id, access.AnyRole); err != nil {
		return model.Form{}, err
	}
	return s.Forms.GetForm(ctx, formID)
}

func (s *Service) CreateForm(ctx context.Context, id *access.Identity, name string, fields []model.FieldSpec) (model.Form, error) {
	if err := access.Authorize(id, access.AdminOnly); err != nil {
		return model.Form{}, err
	}

	form, err := s.Forms.CreateForm(ctx, name, fields)
	if err != nil {
		return model.Form{}, err
	}
	log.WithFields(log.Fields{"form": form.ID, "fields": len(form.Fields), "by": id.Username}).Info("form created")
	return form, nil
}

// EditForm renames a form and replaces its whole field set. Existing fields not
// listed in fields are deleted.
func (s *Service) EditForm(ctx context.Context, id *access.Identity, formID int64, name string, fields []model.FieldSpec) (model.Form, error) {
	if err := access.Authorize(id, access.AdminOnly); err != nil {
		return model.Form{}, err
	}

	form, err := s.Forms.EditForm(ctx, formID, name, fields)
	if err != nil {
		return model.Form{}, err
	}
	log.WithFields(log.Fields{"form": form.ID, "fields": len(form.Fields), "by": id.Username}).Info("form fields replaced")
	return form, nil
}

func (s *Service) DeleteForm(ctx context.Context, id *access.Identity, formID int64) error {
	if err := access.Authorize(id, access.AdminOnly); err != nil {
		return err
	}

	if err := s.Forms.DeleteForm(ctx, formID); err != nil {
		return err
	}
	log.WithFields(log.Fields{"form": formID, "by": id.Username}).Info("form deleted")
	return nil
}

// Submit stores the caller's filling of a form.
func (s *Service) Submit(ctx context.Context, id *access.Identity, formID int64, in submission.Input) (submission.Submission, error) {
	if err := access.Authorize(id, access.AnyRole); err != nil {
		return submission.Submission{}, err
	}

	form, err := s.Forms.GetForm(ctx, formID)
	if err != nil {
		return submission.Submission{}, err
	}

	doc, err := s.Codec.Build(form.Fields, in)
	if err != nil {
		return submission.Submission{}, err
	}
	if gaps := submission.Check(form.Fields, doc, submission.Policy{EnforceRequired: true, EnforceTypes: true}); gaps != nil {
		log.Debugf("submission.gaps: form %d by %s: %s", formID, id.Username, gaps)
	}

	sub, err := s.Submissions.Create(ctx, formID, id.UserID, doc)
	if err != nil {
		return submission.Submission{}, err
	}
	sub.FormName = form.Name
	sub.Username = id.Username
	return sub, nil
}

// SubmissionsView is a form with its submissions, plus each submission rendered
// as a row exactly like the export renders it.
type SubmissionsView struct {
	Form        model.Form              `json:"form"`
	Submissions []submission.Submission `json:"submissions"`
	Rows        [][]string              `json:"rows"`
}

func (s *Service) FormSubmissions(ctx context.Context, id *access.Identity, formID int64) (SubmissionsView, error) {
	if err := access.Authorize(id, access.AdminOnly); err != nil {
		return SubmissionsView{}, err
	}

	form, subs, err := s.formSubmissions(ctx, formID)
	if err != nil {
		return SubmissionsView{}, err
	}

	rows := make([][]string, len(subs))
	for i, sub := range subs {
		rows[i] = export.Row(form.Fields, sub.Document)
	}
	return SubmissionsView{Form: form, Submissions: subs, Rows: rows}, nil
}

// MySubmissions lists what the calling staff member submitted.
func (s *Service) MySubmissions(ctx context.Context, id *access.Identity) ([]submission.Submission, error) {
	if err := access.Authorize(id, access.StaffOnly); err != nil {
		return nil, err
	}

	subs, err := s.Submissions.ListByUser(ctx, id.UserID)
	if err != nil {
		logCorruption(err)
		return nil, err
	}
	return subs, nil
}

// Export projects every submission of a form into a grid, the form name names the sheet.
func (s *Service) Export(ctx context.Context, id *access.Identity, formID int64) (model.Form, export.Grid, error) {
	if err := access.Authorize(id, access.AdminOnly); err != nil {
		return model.Form{}, nil, err
	}

	form, subs, err := s.formSubmissions(ctx, formID)
	if err != nil {
		return model.Form{}, nil, err
	}

	docs := make([]submission.Document, len(subs))
	for i, sub := range subs {
		docs[i] = sub.Document
	}
	return form, export.Project(form.Fields, docs), nil
}

func (s *Service) CreateUser(ctx context.Context, id *access.Identity, username, password string, role access.Role) (model.User, error) {
	if err := access.Authorize(id, access.AdminOnly); err != nil {
		return model.User{}, err
	}

	user, err := s.Users.Create(ctx, username, password, role)
	if err != nil {
		return model.User{}, err
	}
	log.WithFields(log.Fields{"user": user.Username, "role": user.Role, "by": id.Username}).Info("user created")
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, id *access.Identity) ([]model.User, error) {
	if err := access.Authorize(id, access.AdminOnly); err != nil {
		return nil, err
	}
	return s.Users.List(ctx)
}

type Dashboard struct {
	Forms       []model.Form `json:"forms"`
	Users       []model.User `json:"users"`
	Submissions int          `json:"submissions"`
}

func (s *Service) Dashboard(ctx context.Context, id *access.Identity) (Dashboard, error) {
	if err := access.Authorize(id, access.AdminOnly); err != nil {
		return Dashboard{}, err
	}

	var (
		d   Dashboard
		err error
	)
	if d.Forms, err = s.Forms.ListForms(ctx); err != nil {
		return Dashboard{}, err
	}
	if d.Users, err = s.Users.List(ctx); err != nil {
		return Dashboard{}, err
	}
	if d.Submissions, err = s.Submissions.Count(ctx); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

func (s *Service) formSubmissions(ctx context.Context, formID int64) (model.Form, []submission.Submission, error) {
	form, err := s.Forms.GetForm(ctx, formID)
	if err != nil {
		return model.Form{}, nil, err
	}

	subs, err := s.Submissions.ListByForm(ctx, formID)
	if err != nil {
		logCorruption(err)
		return model.Form{}, nil, err
	}
	return form, subs, nil
}

// logCorruption reports stored documents that no longer parse. Only the codec
// writes them, so this means the data was damaged outside the application.
func logCorruption(err error) {
	if errors.Is(err, model.ErrMalformedDocument) {
		log.Errorf("submission.decode: %s", err)
	}
}
