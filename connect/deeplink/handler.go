package deeplink

import (
	"encoding/json"
	"errors"
	"net/http"
)

type callbackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler serves wallet callbacks. GET reads the query string; POST reads a
// form body.
func (c *Connector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			writeJSON(w, http.StatusMethodNotAllowed, callbackResponse{Error: "method not allowed"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 8<<10)
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, callbackResponse{Error: "malformed request"})
			return
		}

		state := r.Form.Get("state")
		if state == "" {
			writeJSON(w, http.StatusBadRequest, callbackResponse{Error: "missing state"})
			return
		}
		err := c.Complete(state, r.Form.Get("address"), r.Form.Get("chain"), r.Form.Get("error"))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, callbackResponse{OK: true})
		case errors.Is(err, ErrUnknownState):
			writeJSON(w, http.StatusNotFound, callbackResponse{Error: "unknown or expired state"})
		default:
			writeJSON(w, http.StatusInternalServerError, callbackResponse{Error: "internal error"})
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
