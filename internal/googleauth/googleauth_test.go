package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const credentialsJSON = `{"installed":{"client_id":"cid.apps.googleusercontent.com","client_secret":"secret",
"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"%s",
"redirect_uris":["http://localhost"]}}`

func writeCredentials(t *testing.T, tokenURI string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf(credentialsJSON, tokenURI)), 0o600))
	return p
}

func TestLoadConfig(t *testing.T) {
	p := writeCredentials(t, "https://oauth2.googleapis.com/token")
	cfg, err := LoadConfig(p, "http://127.0.0.1:8085/callback")
	require.NoError(t, err)
	assert.Equal(t, "cid.apps.googleusercontent.com", cfg.ClientID)
	assert.Equal(t, "http://127.0.0.1:8085/callback", cfg.RedirectURL)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/gmail.send"}, cfg.Scopes)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Error(t, err)
}

func TestConsentURL_OfflineAndForced(t *testing.T) {
	cfg := &oauth2.Config{ClientID: "cid", Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example/auth"}, Scopes: []string{"s"}}
	u, err := url.Parse(ConsentURL(cfg, "state-1"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "state-1", q.Get("state"))
}

func TestWriteReadToken(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "token.json")
	tok := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour).Round(time.Second)}
	require.NoError(t, WriteToken(p, tok))

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := ReadToken(p)
	require.NoError(t, err)
	assert.Equal(t, "rt", got.RefreshToken)
	assert.True(t, tok.Expiry.Equal(got.Expiry))
}

func TestReadToken_NoRefreshToken(t *testing.T) {
	p := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"access_token":"at"}`), 0o600))
	_, err := ReadToken(p)
	assert.True(t, errors.Is(err, ErrNoRefreshToken))
}

func TestExchange(t *testing.T) {
	refresh := "rt"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600,"refresh_token":"` + refresh + `"}`))
	}))
	defer srv.Close()

	cfg, err := LoadConfig(writeCredentials(t, srv.URL), "")
	require.NoError(t, err)

	tok, err := Exchange(context.Background(), cfg, "the-code")
	require.NoError(t, err)
	assert.Equal(t, "rt", tok.RefreshToken)

	refresh = ""
	_, err = Exchange(context.Background(), cfg, "the-code")
	assert.True(t, errors.Is(err, ErrNoRefreshToken))
}
