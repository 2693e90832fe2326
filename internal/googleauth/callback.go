package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// CodeReceiver serves the OAuth redirect on a loopback address and hands over the
// authorization code once the state matches.
type CodeReceiver struct {
	state string
	codes chan codeResult
}

type codeResult struct {
	code string
	err  error
}

func NewCodeReceiver(state string) *CodeReceiver {
	return &CodeReceiver{state: state, codes: make(chan codeResult, 1)}
}

func (c *CodeReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var res codeResult
	switch {
	case q.Get("state") != c.state:
		http.Error(w, "state mismatch", http.StatusBadRequest)
		return
	case q.Get("error") != "":
		res.err = fmt.Errorf("googleauth: consent denied: %s", q.Get("error"))
	case q.Get("code") == "":
		res.err = errors.New("googleauth: callback has no code")
	default:
		res.code = q.Get("code")
	}
	select {
	case c.codes <- res:
	default:
	}
	if res.err != nil {
		http.Error(w, res.err.Error(), http.StatusBadRequest)
		return
	}
	_, _ = fmt.Fprintln(w, "Authorization received. You can close this tab.")
}

// Wait blocks until the first callback arrives or ctx is done.
func (c *CodeReceiver) Wait(ctx context.Context) (string, error) {
	select {
	case res := <-c.codes:
		return res.code, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
