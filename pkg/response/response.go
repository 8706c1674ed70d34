package response

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse is the envelope the loan frontend reads.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
	Reference string      `json:"reference,omitempty"`
	Receipt   interface{} `json:"receipt,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func Error(w http.ResponseWriter, r *http.Request, status int, msg string) {
	JSON(w, r, status, APIResponse{Success: false, Error: msg})
}
