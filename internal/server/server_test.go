package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/poken/poseidon/internal/config"
	"github.com/poken/poseidon/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch {
		case r.Form.Get("grant_type") == "client_credentials":
			io.WriteString(w, `{"access_token":"c1","expires_in":3600}`)
		case r.Form.Get("grant_type") == "password" && r.Form.Get("password") == "pass":
			io.WriteString(w, `{"access_token":"u-`+r.Form.Get("username")+`","refresh_token":"refresh-`+r.Form.Get("username")+`","expires_in":3600}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error_description":"Invalid username and password combination"}`)
		}
	})
	mux.HandleFunc("/rest/me", func(w http.ResponseWriter, r *http.Request) {
		switch access := r.URL.Query().Get("access_token"); access {
		case "c1":
			io.WriteString(w, `{"name":"anonymous"}`)
		case "u-jane":
			io.WriteString(w, `{"name":"jane"}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/rest/private", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/rest/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":[{"description":"Object not found"}]}`)
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)
	return upstream
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	upstream := newUpstream(t)

	m := config.NewManagerWithPath(filepath.Join(t.TempDir(), "config.json")).WithGetenv(func(string) string { return "" })
	require.NoError(t, m.Save(&config.Config{
		ClientID:     "app",
		ClientSecret: "s3cret",
		APIPath:      upstream.URL + "/rest/",
		Cache:        config.CacheMemory,
	}))

	cookies, err := NewCookieStore("test secret", false)
	require.NoError(t, err)
	srv := New(service.NewSessions(m, zerolog.Nop()), cookies, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var v map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_VisitorSessions(t *testing.T) {
	ts := newTestServer(t)
	jane := newBrowser(t)
	guest := newBrowser(t)

	resp, err := jane.Get(ts.URL + "/status")
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, resp)["logged_in"])

	resp, err = jane.PostForm(ts.URL+"/login", url.Values{"username": {"jane"}, "password": {"wrong"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid username and password combination", decode(t, resp)["error"])

	resp, err = jane.PostForm(ts.URL+"/login", url.Values{"username": {"jane"}, "password": {"pass"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = jane.Get(ts.URL + "/api/me")
	require.NoError(t, err)
	assert.Equal(t, "jane", decode(t, resp)["name"])

	resp, err = guest.Get(ts.URL + "/api/me")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", decode(t, resp)["name"])

	resp, err = jane.Post(ts.URL+"/logout", "", nil)
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, resp)["logged_in"])

	resp, err = jane.Get(ts.URL + "/api/me")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", decode(t, resp)["name"])
}

func TestServer_APIErrors(t *testing.T) {
	ts := newTestServer(t)
	browser := newBrowser(t)

	resp, err := browser.Get(ts.URL + "/api/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Object not found", decode(t, resp)["error"])

	resp, err = browser.Get(ts.URL + "/api/private")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/me", nil)
	require.NoError(t, err)
	resp, err = browser.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()

	resp, err = browser.Get(ts.URL + "/login")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

// cookiePayload returns the session value carried by a gorilla cookie,
// before any decryption.
func cookiePayload(t *testing.T, value string) []byte {
	t.Helper()
	outer, err := base64.URLEncoding.DecodeString(value)
	require.NoError(t, err)
	parts := bytes.SplitN(outer, []byte("|"), 3)
	require.Len(t, parts, 3)
	payload, err := base64.URLEncoding.DecodeString(string(parts[1]))
	require.NoError(t, err)
	return payload
}

func TestServer_SessionCookieIsEncrypted(t *testing.T) {
	ts := newTestServer(t)
	jane := newBrowser(t)

	resp, err := jane.PostForm(ts.URL+"/login", url.Values{"username": {"jane"}, "password": {"pass"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Len(t, resp.Header.Values("Set-Cookie"), 1, "one cookie per response")
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	payload := cookiePayload(t, cookies[0].Value)
	assert.NotContains(t, string(payload), "u-jane")
	assert.NotContains(t, string(payload), "refresh-jane")
	assert.NotContains(t, string(payload), "user.token")
}

func TestNewCookieStore(t *testing.T) {
	write := func(t *testing.T, cookies sessions.Store) *http.Cookie {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		sess, err := cookies.Get(req, SessionName)
		require.NoError(t, err)
		sess.Values["user.status"] = "true"
		require.NoError(t, sess.Save(req, rec))
		return rec.Result().Cookies()[0]
	}
	read := func(cookies sessions.Store, cookie *http.Cookie) (any, error) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		sess, err := cookies.Get(req, SessionName)
		return sess.Values["user.status"], err
	}

	first, err := NewCookieStore("shared secret", true)
	require.NoError(t, err)
	assert.True(t, first.Options.Secure)
	cookie := write(t, first)

	again, err := NewCookieStore("shared secret", true)
	require.NoError(t, err)
	v, err := read(again, cookie)
	require.NoError(t, err)
	assert.Equal(t, "true", v, "the same secret reads existing sessions")

	other, err := NewCookieStore("another secret", false)
	require.NoError(t, err)
	assert.False(t, other.Options.Secure)
	_, err = read(other, cookie)
	assert.Error(t, err)

	random, err := NewCookieStore("", false)
	require.NoError(t, err)
	_, err = read(random, write(t, random))
	assert.NoError(t, err)
}
