package status

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"coinfarm/entity"
	"coinfarm/lib/api/response"
	"coinfarm/lib/sl"
)

type Core interface {
	Status() (*entity.Status, error)
}

// Alive is the liveness probe used by process supervisors. The body is
// fixed; only the 200 matters.
func Alive(_ *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "Bot is running")
	}
}

// Status reports a service snapshot: environment, uptime, user count and
// the mandatory channel list.
func Status(log *slog.Logger, core Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.status")

		snapshot, err := core.Status()
		if err != nil {
			log.Error("reading status", mod, sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Status unavailable"))
			return
		}
		render.JSON(w, r, response.Ok(snapshot))
	}
}
