// Package httpx holds the JSON request and response helpers shared by the REST handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dip-aaa/web-project-sub002/internal/validation"
)

// MaxBodyBytes caps request bodies read by DecodeJSON.
const MaxBodyBytes = 64 << 10

// MsgInternal is the body of every 500 response; the cause is logged, never returned.
const MsgInternal = "Something went wrong. Please try again."

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// MessageBody is the error and notice envelope: {"message": "..."}.
type MessageBody struct {
	Message string `json:"message"`
}

// JSONResponse writes payload as JSON with the given status.
func JSONResponse(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Message writes {"message": msg} with the given status.
func Message(w http.ResponseWriter, status int, msg string) {
	JSONResponse(w, status, MessageBody{Message: msg})
}

// DecodeJSON reads a JSON body into dst and applies its `validate` tags. The returned
// error is a *validation.Error carrying a user-facing message.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &validation.Error{Message: validation.MsgRequiredFields}
		}
		return &validation.Error{Message: "Request body must be valid JSON"}
	}
	return Validate(dst)
}

// Validate applies struct tags to v and converts the first failure into a *validation.Error.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &validation.Error{Message: validation.MsgRequiredFields}
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return &validation.Error{Field: field, Message: validation.MsgRequiredFields}
	case "email":
		return &validation.Error{Field: field, Message: validation.MsgInvalidEmail}
	case "max":
		return &validation.Error{Field: field, Message: fmt.Sprintf("%s must be at most %s characters", field, fe.Param())}
	default:
		return &validation.Error{Field: field, Message: fmt.Sprintf("%s is invalid", field)}
	}
}
