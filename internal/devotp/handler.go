package devotp

import (
	"net/http"

	"github.com/dip-aaa/web-project-sub002/internal/httpx"
)

const devOTPNote = "DEV MODE ONLY"

// Response is the body of GET /dev/otp.
type Response struct {
	OTP  string `json:"otp"`
	Note string `json:"note"`
}

// Handler serves GET /dev/otp?email=... from store. Only mounted when dev OTP mode is on.
func Handler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if email == "" {
			httpx.Message(w, http.StatusBadRequest, "email is required")
			return
		}
		code, ok := store.Get(r.Context(), email)
		if !ok {
			httpx.Message(w, http.StatusNotFound, "OTP not found or expired")
			return
		}
		httpx.JSONResponse(w, http.StatusOK, Response{OTP: code, Note: devOTPNote})
	}
}
