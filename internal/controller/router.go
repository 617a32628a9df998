package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c *controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(c.identityMw)

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", c.CreateRoom)
			r.Get("/", c.GetUserRooms)
			r.Post("/join", c.JoinRoom)

			r.Route("/{room-id}", func(r chi.Router) {
				r.Get("/", c.GetRoom)
				r.Delete("/", c.CloseRoom)
				r.Post("/leave", c.LeaveRoom)
				r.Post("/playback", c.RequestPlayback)
			})
		})

		r.Get("/readiness", c.GetReadiness)
		r.Post("/readiness", c.ReportReadiness)
	})

	r.With(c.identityMw).Get("/ws/rooms/{room-id}", c.ServeRoomWS)

	return r
}
