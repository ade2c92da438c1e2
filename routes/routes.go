package routes

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/quick-forms/access"
	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/httpx"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))
	api.Post("/logout", Logout(app))

	api.Group(func(r chi.Router) {
		r.Use(middlewares.CookieAuth(app.BearerServer), middlewares.Authenticated(app.TokenSecret))

		r.Get("/forms", ListForms(app))
		r.Get(`/forms/{id:^\d+$}`, GetForm(app))
		r.Post(`/forms/{id:^\d+$}/submissions`, SubmitForm(app))

		r.With(middlewares.Require(access.StaffOnly)).Get("/me/submissions", MySubmissions(app))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.Require(access.AdminOnly))

			r.Get("/dashboard", Dashboard(app))

			// CRUD form
			r.Post("/forms", CreateForm(app))
			r.Put(`/forms/{id:^\d+$}`, EditForm(app))
			r.Delete(`/forms/{id:^\d+$}`, DeleteForm(app))

			r.Get(`/forms/{id:^\d+$}/submissions`, FormSubmissions(app))
			r.Get(`/forms/{id:^\d+$}/export`, ExportForm(app))

			r.Post("/users", CreateUser(app))
			r.Get("/users", ListUsers(app))
		})
	})

	return api
}

func formID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
		return 0, false
	}
	return id, true
}
