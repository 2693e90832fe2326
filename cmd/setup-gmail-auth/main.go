// setup-gmail-auth runs the one-time OAuth consent flow that lets the server send OTP mail
// through the Gmail API. It writes the token to GMAIL_TOKEN_FILE.
//
// With -port set, Google redirects to a loopback listener. With -port=0 the operator pastes
// the code parameter from the browser's address bar.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dip-aaa/web-project-sub002/internal/config"
	"github.com/dip-aaa/web-project-sub002/internal/googleauth"
)

func main() {
	credentials := flag.String("credentials", "", "OAuth client JSON (default GMAIL_CREDENTIALS_FILE)")
	tokenFile := flag.String("token", "", "Where to write the token (default GMAIL_TOKEN_FILE)")
	port := flag.Int("port", 8085, "Loopback port for the redirect; 0 to paste the code manually")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("config", err)
	}
	if *credentials == "" {
		*credentials = cfg.GmailCredentialsFile
	}
	if *tokenFile == "" {
		*tokenFile = cfg.GmailTokenFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	redirect := "http://localhost"
	if *port > 0 {
		redirect = fmt.Sprintf("http://127.0.0.1:%d/callback", *port)
	}
	oauthCfg, err := googleauth.LoadConfig(*credentials, redirect)
	if err != nil {
		fail("load credentials", err)
	}

	state := uuid.NewString()
	fmt.Println("Open this URL in a browser and grant access:")
	fmt.Println()
	fmt.Println(googleauth.ConsentURL(oauthCfg, state))
	fmt.Println()

	var code string
	if *port > 0 {
		code, err = viaLoopback(ctx, *port, state)
	} else {
		code, err = viaPaste(state)
	}
	if err != nil {
		fail("authorization", err)
	}

	tok, err := googleauth.Exchange(ctx, oauthCfg, code)
	if err != nil {
		fail("exchange", err)
	}
	if err := googleauth.WriteToken(*tokenFile, tok); err != nil {
		fail("write token", err)
	}
	fmt.Printf("Token saved to %s. Set MAIL_DRIVER=gmail to send OTP mail through Gmail.\n", *tokenFile)
}

func viaLoopback(ctx context.Context, port int, state string) (string, error) {
	recv := googleauth.NewCodeReceiver(state)
	mux := http.NewServeMux()
	mux.Handle("/callback", recv)
	lis, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return "", err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(lis) }()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	fmt.Printf("Waiting for the redirect on %s ...\n", lis.Addr())
	return recv.Wait(ctx)
}

// viaPaste accepts either the bare code or the whole redirected URL.
func viaPaste(state string) (string, error) {
	fmt.Print("Paste the code (or the full redirected URL): ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	line = strings.TrimSpace(line)
	if u, err := url.Parse(line); err == nil && u.Scheme != "" {
		q := u.Query()
		if q.Get("state") != "" && q.Get("state") != state {
			return "", errors.New("state mismatch")
		}
		line = q.Get("code")
	}
	if line == "" {
		return "", errors.New("no code entered")
	}
	return line, nil
}

func fail(step string, err error) {
	if errors.Is(err, googleauth.ErrNoRefreshToken) {
		fmt.Fprintln(os.Stderr, "Google returned no refresh token; revoke the app's access and run again.")
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
