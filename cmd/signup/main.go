// signup is a terminal client for the campus signup flow: register, verify the emailed
// code, and keep the session tokens in a local file.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dip-aaa/web-project-sub002/internal/signupform"
)

type globalFlags struct {
	apiURL      string
	sessionFile string
	domains     string
	timeout     time.Duration
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "signup",
		Short:        "Sign up for the campus marketplace",
		SilenceUsage: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)
	root.PersistentFlags().StringVar(&g.apiURL, "api", envOr("CAMPUS_API_URL", "http://localhost:8080"), "Auth API base URL")
	root.PersistentFlags().StringVar(&g.sessionFile, "session-file", ".campus-session.json", "Where session tokens are stored")
	root.PersistentFlags().StringVar(&g.domains, "domains", envOr("ALLOWED_EMAIL_DOMAINS", "khwopa.edu.np"), "Accepted college email domains (comma-separated)")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 15*time.Second, "Per-request timeout")

	root.AddCommand(registerCmd(g), verifyCmd(g), resendCmd(g), wizardCmd(g), logoutCmd(g))
	return root
}

func (g *globalFlags) controller(out io.Writer, resumeEmail string) *signupform.Controller {
	var domains []string
	for _, d := range strings.Split(g.domains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	return signupform.New(signupform.Options{
		API:            signupform.NewHTTPClient(g.apiURL, g.timeout),
		Storage:        signupform.NewFileStorage(g.sessionFile),
		AllowedDomains: domains,
		ResumeEmail:    resumeEmail,
		Navigate: func(route string) {
			fmt.Fprintf(out, "Signed in. Session saved to %s (next: %s)\n", g.sessionFile, route)
		},
	})
}

func registerCmd(g *globalFlags) *cobra.Command {
	var d signupform.Draft
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Submit the registration form and have a code emailed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if d.ConfirmPassword == "" {
				d.ConfirmPassword = d.Password
			}
			c := g.controller(cmd.OutOrStdout(), "")
			out, err := c.SubmitRegistration(cmd.Context(), d)
			if err != nil {
				return errors.New(out.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			fmt.Fprintf(cmd.OutOrStdout(), "Run: signup verify --email %s --otp <code>\n", c.Email())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&d.Name, "name", "", "Full name")
	f.StringVar(&d.Email, "email", "", "College email address")
	f.StringVar(&d.Password, "password", "", "Password")
	f.StringVar(&d.ConfirmPassword, "confirm-password", "", "Password again (defaults to --password)")
	f.StringVar(&d.PhoneNumber, "phone", "", "Phone number")
	f.StringVar(&d.Department, "department", "", "Department")
	return cmd
}

func verifyCmd(g *globalFlags) *cobra.Command {
	var email, code string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the emailed code and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := g.controller(cmd.OutOrStdout(), email).SubmitOTP(cmd.Context(), code)
			if err != nil {
				return errors.New(out.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email the code was sent to")
	cmd.Flags().StringVar(&code, "otp", "", "6-digit code")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func resendCmd(g *globalFlags) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Email a new code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := g.controller(cmd.OutOrStdout(), email).ResendOTP(cmd.Context())
			if err != nil {
				return errors.New(out.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email the code was sent to")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func wizardCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive two-step signup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := &wizard{
				c:   g.controller(cmd.OutOrStdout(), ""),
				in:  bufio.NewReader(cmd.InOrStdin()),
				out: cmd.OutOrStdout(),
			}
			return w.run(cmd.Context())
		},
	}
}

func logoutCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session and delete it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := signupform.SignOut(cmd.Context(), signupform.NewHTTPClient(g.apiURL, g.timeout), signupform.NewFileStorage(g.sessionFile))
			if err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out. Removed session from %s\n", g.sessionFile)
			return nil
		},
	}
}

type wizard struct {
	c   *signupform.Controller
	in  *bufio.Reader
	out io.Writer
}

func (w *wizard) ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}
	line, err := w.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	if line = strings.TrimSpace(line); line == "" {
		return def, nil
	}
	return line, nil
}

func (w *wizard) run(ctx context.Context) error {
	for {
		var err error
		if w.c.State() == signupform.StateRegistration {
			err = w.register(ctx)
		} else {
			var done bool
			done, err = w.verify(ctx)
			if done {
				return nil
			}
		}
		if err != nil {
			return err
		}
	}
}

// register collects the draft, prefilled with the previous attempt.
func (w *wizard) register(ctx context.Context) error {
	prev := w.c.Draft()
	var d signupform.Draft
	var err error
	fields := []struct {
		prompt string
		dst    *string
		def    string
	}{
		{"Name", &d.Name, prev.Name},
		{"College email", &d.Email, prev.Email},
		{"Password", &d.Password, ""},
		{"Confirm password", &d.ConfirmPassword, ""},
		{"Phone (optional)", &d.PhoneNumber, prev.PhoneNumber},
		{"Department (optional)", &d.Department, prev.Department},
	}
	for _, f := range fields {
		if *f.dst, err = w.ask(f.prompt, f.def); err != nil {
			return err
		}
	}
	out, _ := w.c.SubmitRegistration(ctx, d)
	fmt.Fprintln(w.out, out.Message)
	return nil
}

// verify reads a code, "r" to resend or "b" to go back. done is true once signed in.
func (w *wizard) verify(ctx context.Context) (done bool, err error) {
	line, err := w.ask(fmt.Sprintf("Code sent to %s (r = resend, b = back)", w.c.Email()), "")
	if err != nil {
		return false, err
	}
	var out signupform.Outcome
	switch strings.ToLower(line) {
	case "r":
		out, _ = w.c.ResendOTP(ctx)
	case "b":
		out, _ = w.c.ReturnToRegistration()
	default:
		out, _ = w.c.SubmitOTP(ctx, line)
	}
	if out.Message != "" {
		fmt.Fprintln(w.out, out.Message)
	}
	return out.Navigated, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
