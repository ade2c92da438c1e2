package routes

import (
	"mime"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/submission"
)

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := app.Service.ListForms(r.Context(), access.FromContext(r.Context()))
		if err != nil {
			httpx.LogError(w, r, "list_forms", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, ok := formID(w, r)
		if !ok {
			return
		}

		form, err := app.Service.GetForm(r.Context(), access.FromContext(r.Context()), formId)
		if err != nil {
			httpx.LogError(w, r, "get_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

// SubmitForm accepts either a JSON object keyed by label, or a form post where
// checkbox fields repeat their key once per ticked option.
func SubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId, ok := formID(w, r)
		if !ok {
			return
		}

		var in submission.Input
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("content-type"))
		if mediaType == "application/json" {
			if err := render.DecodeJSON(r.Body, &in); err != nil {
				httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "%s", err)
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_form")
				return
			}
			in = submission.Input(r.PostForm)
		}

		sub, err := app.Service.Submit(r.Context(), access.FromContext(r.Context()), formId, in)
		if err != nil {
			httpx.LogError(w, r, "submit_form", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": sub.ID,
		})
	}
}

func MySubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subs, err := app.Service.MySubmissions(r.Context(), access.FromContext(r.Context()))
		if err != nil {
			httpx.LogError(w, r, "my_submissions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"submissions": subs,
		})
	}
}
