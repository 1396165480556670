package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/chatbro/backend/internal/models"
)

// httpError maps the service error taxonomy onto HTTP status codes
func httpError(err error) *echo.HTTPError {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, models.ErrAuth):
		code = http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrExhaustedAttempts):
		code = http.StatusConflict
	}
	return echo.NewHTTPError(code, err.Error())
}

// sendLatest puts v into events, displacing a pending undelivered value
// if there is one. Each snapshot is the full current state and
// supersedes the last, so under a burst the newest snapshot always
// wins and the client never observes stale final state.
func sendLatest(events chan any, v any) {
	for {
		select {
		case events <- v:
			return
		default:
			select {
			case <-events:
			default:
			}
		}
	}
}

// streamEvents serves an SSE stream. subscribe must open the standing
// subscription, deliver snapshots through send, and return the cleanup
// that tears down its own registration (and only its own: with
// overlapping connections, as on reconnect, a stale connection's
// cleanup must not touch the successor's subscription).
func streamEvents(c echo.Context, subscribe func(send func(any)) (func(), error)) error {
	events := make(chan any, 1)
	send := func(v any) { sendLatest(events, v) }

	cleanup, err := subscribe(send)
	if err != nil {
		return httpError(err)
	}
	defer cleanup()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case v := <-events:
			data, err := json.Marshal(v)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			w.Flush()
		}
	}
}
