package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/model"
)

// Will log an error, and send an HTTP response with status 500 and default text
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Will log an error code at the given level, and send
// an HTTP response with status and default text
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// Will log an error code and message at the given level,
// and send a JSON response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	render.Status(r, status)
	render.JSON(w, r, map[string]any{"error": errMsg})
}

// Will pick the response for err from the error taxonomy: client errors are
// logged at debug level with their message, anything else is an internal error
func LogError(w http.ResponseWriter, r *http.Request, code string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		LogStatusMsg(w, r, http.StatusNotFound, log.DebugLevel, code, "%s", err)
	case errors.Is(err, model.ErrUnauthorized):
		LogStatus(w, http.StatusUnauthorized, log.DebugLevel, code)
	case errors.Is(err, model.ErrForbidden):
		LogStatusMsg(w, r, http.StatusForbidden, log.DebugLevel, code, "%s", model.ErrForbidden)
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInvalidInput):
		LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, code, "%s", err)
	case errors.Is(err, model.ErrConflict):
		LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, code, "%s", err)
	default:
		LogInternalError(w, code, err)
	}
}
