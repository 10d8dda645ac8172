package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcoot/rollcall/internal/api/apierr"
	"github.com/mcoot/rollcall/internal/middleware"
)

// Recovery answers a panicking API handler with the JSON internal error.
// An event stream has already sent its headers, so it is only ended.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, apiPanicHandler)
}

func apiPanicHandler(w http.ResponseWriter, r *http.Request, _ any) {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return
	}
	apierr.WriteError(w, apierr.NewInternalError())
}
