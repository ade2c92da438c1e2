package routes

import (
	"bytes"
	"mime"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/export"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
)

// formRequest is the body of form create and edit calls. On edit, fields with
// an id keep that field, fields without one are new, and missing ids are deleted.
type formRequest struct {
	Name   string            `json:"name"`
	Fields []model.FieldSpec `json:"fields"`
}

type userRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func Dashboard(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := app.Service.Dashboard(r.Context(), access.FromContext(r.Context()))
		if err != nil {
			httpx.LogError(w, r, "dashboard", err)
			return
		}

		render.JSON(w, r, d)
	}
}

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := formRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := app.Service.CreateForm(r.Context(), access.FromContext(r.Context()), req.Name, req.Fields)
		if err != nil {
			httpx.LogError(w, r, "create_form", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, form)
	}
}

func EditForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, ok := formID(w, r)
		if !ok {
			return
		}

		req := formRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		form, err := app.Service.EditForm(r.Context(), access.FromContext(r.Context()), formId, req.Name, req.Fields)
		if err != nil {
			httpx.LogError(w, r, "edit_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, ok := formID(w, r)
		if !ok {
			return
		}

		err := app.Service.DeleteForm(r.Context(), access.FromContext(r.Context()), formId)
		if err != nil {
			httpx.LogError(w, r, "delete_form", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func FormSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, ok := formID(w, r)
		if !ok {
			return
		}

		view, err := app.Service.FormSubmissions(r.Context(), access.FromContext(r.Context()), formId)
		if err != nil {
			httpx.LogError(w, r, "form_submissions", err)
			return
		}

		render.JSON(w, r, view)
	}
}

// ExportForm downloads every submission of a form, ?format=csv or xlsx (the default).
func ExportForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, ok := formID(w, r)
		if !ok {
			return
		}

		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			httpx.LogError(w, r, "export.format", err)
			return
		}

		form, grid, err := app.Service.Export(r.Context(), access.FromContext(r.Context()), formId)
		if err != nil {
			httpx.LogError(w, r, "export", err)
			return
		}

		var buf bytes.Buffer
		if err = export.Write(&buf, format, form.Name, grid); err != nil {
			httpx.LogError(w, r, "export.write", err)
			return
		}

		w.Header().Set("content-type", format.ContentType())
		w.Header().Set("content-disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": format.Filename(form.Name),
		}))
		w.Write(buf.Bytes())
	}
}

func CreateUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := userRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		role, err := access.ParseRole(req.Role)
		if err != nil {
			httpx.LogError(w, r, "create_user.role", err)
			return
		}

		user, err := app.Service.CreateUser(r.Context(), access.FromContext(r.Context()), req.Username, req.Password, role)
		if err != nil {
			httpx.LogError(w, r, "create_user", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, user)
	}
}

func ListUsers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := app.Service.ListUsers(r.Context(), access.FromContext(r.Context()))
		if err != nil {
			httpx.LogError(w, r, "list_users", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"users": users,
		})
	}
}
