// Package signupform drives the two-step signup wizard: the registration form, then the
// emailed code. It validates locally with the same rules as the API server and talks to
// the auth endpoints through AuthAPI.
package signupform

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dip-aaa/web-project-sub002/internal/validation"
)

// State is the current wizard step.
type State int

const (
	StateRegistration State = iota
	StateOTPVerification
)

func (s State) String() string {
	switch s {
	case StateRegistration:
		return "registration"
	case StateOTPVerification:
		return "otp_verification"
	default:
		return "unknown"
	}
}

// Messages shown by the controller when the server sends none.
const (
	MsgTryAgain  = "Something went wrong. Please try again."
	MsgOTPSent   = "OTP sent to your email"
	MsgOTPResent = "A new OTP has been sent to your email"
)

// DashboardPath is where a verified user is sent.
const DashboardPath = "/dashboard"

var (
	// ErrBusy is returned when an action is attempted while a request is in flight.
	ErrBusy = errors.New("signupform: request already in progress")
	// ErrWrongState is returned when an action does not apply to the current step.
	ErrWrongState = errors.New("signupform: action not available in this step")
)

// Draft is the registration form input.
type Draft struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	PhoneNumber     string
	Department      string
}

// Outcome is what the view renders after an action.
type Outcome struct {
	State     State
	Message   string
	Navigated bool
}

// Navigator moves the user to another route after a successful verification.
type Navigator func(route string)

// Options configures a Controller.
type Options struct {
	API     AuthAPI
	Storage Storage
	// Navigate is called with DashboardPath once the session is stored. May be nil.
	Navigate Navigator
	// AllowedDomains are the accepted email suffixes. Empty skips the local domain check
	// and leaves it to the server.
	AllowedDomains []string
	// ResumeEmail starts the controller on the verification step for a code already sent
	// to this address.
	ResumeEmail string
}

// Controller holds the wizard state. It is safe for concurrent use; at most one request
// is in flight at a time.
type Controller struct {
	api      AuthAPI
	storage  Storage
	navigate Navigator
	domains  []string

	mu      sync.Mutex
	state   State
	draft   Draft
	email   string
	code    string
	message string
	loading bool
}

func New(opts Options) *Controller {
	c := &Controller{
		api:      opts.API,
		storage:  opts.Storage,
		navigate: opts.Navigate,
		domains:  opts.AllowedDomains,
	}
	if email := validation.NormalizeEmail(opts.ResumeEmail); email != "" {
		c.state = StateOTPVerification
		c.email = email
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Loading reports whether a request is in flight. Views disable their buttons while true.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Email is the address the code was sent to, empty before a successful registration.
func (c *Controller) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

// Code is the OTP last entered on the verification step.
func (c *Controller) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

// Draft returns the last submitted registration input.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// begin marks a request in flight. It fails with ErrBusy when one already is, or with
// ErrWrongState when the wizard is not in want.
func (c *Controller) begin(want State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return ErrBusy
	}
	if c.state != want {
		return ErrWrongState
	}
	c.loading = true
	return nil
}

// finish clears the loading flag and records the result.
func (c *Controller) finish(state State, msg string, navigated bool) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	c.state = state
	c.message = msg
	return Outcome{State: state, Message: msg, Navigated: navigated}
}

func (c *Controller) current() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Outcome{State: c.state, Message: c.message}
}

// validateDraft applies the local rules in form order: required fields, password policy,
// confirmation, then email format and domain.
func (c *Controller) validateDraft(d Draft) error {
	if err := validation.Required(
		validation.Field{Name: "name", Value: d.Name},
		validation.Field{Name: "email", Value: d.Email},
		validation.Field{Name: "password", Value: d.Password},
		validation.Field{Name: "confirmPassword", Value: d.ConfirmPassword},
	); err != nil {
		return err
	}
	if err := validation.Password(d.Password); err != nil {
		return err
	}
	if err := validation.PasswordsMatch(d.Password, d.ConfirmPassword); err != nil {
		return err
	}
	return validation.Email(d.Email, c.domains)
}

// SubmitRegistration validates d and requests a code. On success the wizard moves to
// OTP verification. Validation failures make no network call.
func (c *Controller) SubmitRegistration(ctx context.Context, d Draft) (Outcome, error) {
	if err := c.begin(StateRegistration); err != nil {
		return c.current(), err
	}
	c.mu.Lock()
	c.draft = d
	c.mu.Unlock()

	if err := c.validateDraft(d); err != nil {
		return c.finish(StateRegistration, err.Error(), false), err
	}
	email := validation.NormalizeEmail(d.Email)
	msg, err := c.api.Signup(ctx, SignupRequest{
		Name:        strings.TrimSpace(d.Name),
		Email:       email,
		Password:    d.Password,
		PhoneNumber: strings.TrimSpace(d.PhoneNumber),
		Department:  strings.TrimSpace(d.Department),
	})
	if err != nil {
		return c.finish(StateRegistration, displayMessage(err), false), err
	}
	if msg == "" {
		msg = MsgOTPSent
	}
	c.mu.Lock()
	c.email = email
	c.code = ""
	c.mu.Unlock()
	return c.finish(StateOTPVerification, msg, false), nil
}

// SubmitOTP validates code and verifies it. On success the session is stored, the draft
// is discarded and the navigator is called.
func (c *Controller) SubmitOTP(ctx context.Context, code string) (Outcome, error) {
	if err := c.begin(StateOTPVerification); err != nil {
		return c.current(), err
	}
	c.mu.Lock()
	c.code = code
	email := c.email
	c.mu.Unlock()

	if err := validation.OTP(code); err != nil {
		return c.finish(StateOTPVerification, err.Error(), false), err
	}
	tokens, err := c.api.VerifyOTP(ctx, email, code)
	if err != nil {
		return c.finish(StateOTPVerification, displayMessage(err), false), err
	}
	if err := PersistSession(c.storage, tokens); err != nil {
		return c.finish(StateOTPVerification, MsgTryAgain, false), err
	}

	c.mu.Lock()
	c.draft = Draft{}
	c.code = ""
	c.mu.Unlock()
	out := c.finish(StateOTPVerification, "", true)
	if c.navigate != nil {
		c.navigate(DashboardPath)
	}
	return out, nil
}

// ResendOTP asks for a new code for the current email. The step does not change.
func (c *Controller) ResendOTP(ctx context.Context) (Outcome, error) {
	if err := c.begin(StateOTPVerification); err != nil {
		return c.current(), err
	}
	email := c.Email()
	msg, err := c.api.ResendOTP(ctx, email)
	if err != nil {
		return c.finish(StateOTPVerification, displayMessage(err), false), err
	}
	if msg == "" {
		msg = MsgOTPResent
	}
	return c.finish(StateOTPVerification, msg, false), nil
}

// ReturnToRegistration goes back to the form, discarding the entered code. The draft is
// kept so the user can correct it.
func (c *Controller) ReturnToRegistration() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return Outcome{State: c.state, Message: c.message}, ErrBusy
	}
	c.state = StateRegistration
	c.code = ""
	c.message = ""
	return Outcome{State: c.state}, nil
}

// displayMessage is the single error display path: local validation and server messages
// are shown as-is, anything else becomes MsgTryAgain.
func displayMessage(err error) string {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Message
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return MsgTryAgain
}
