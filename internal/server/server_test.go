package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/user-accounts/internal/config"
	sqliteRepo "github.com/sakif/user-accounts/internal/repository/sqlite"
	"github.com/sakif/user-accounts/internal/server"
)

type apiResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors string          `json:"errors"`
}

// testAPI is a fully wired server on a fresh in-memory database.
type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := sqliteRepo.New(context.Background(), ":memory:")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.BcryptCost = bcrypt.MinCost

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := server.NewWithStore(cfg, store, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return &testAPI{t: t, handler: srv.Handler()}
}

// do sends a request and decodes the {data|errors} envelope.
func (a *testAPI) do(method, path, token, body string) (int, apiResponse) {
	a.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)

	var resp apiResponse
	require.NoError(a.t, json.Unmarshal(rr.Body.Bytes(), &resp), "body: %s", rr.Body.String())
	return rr.Code, resp
}

func (a *testAPI) register(username, password, name string) (int, apiResponse) {
	a.t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password, "name": name})
	return a.do(http.MethodPost, "/api/users", "", string(body))
}

func (a *testAPI) login(username, password string) (int, apiResponse) {
	a.t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	return a.do(http.MethodPost, "/api/users/login", "", string(body))
}

// mustLogin returns a token for an already registered user.
func (a *testAPI) mustLogin(username, password string) string {
	a.t.Helper()
	code, resp := a.login(username, password)
	require.Equal(a.t, http.StatusOK, code, resp.Errors)

	var tok struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(resp.Data, &tok))
	require.NotEmpty(a.t, tok.Token)
	return tok.Token
}

func profile(t *testing.T, resp apiResponse) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &m))
	return m
}

func TestRegister(t *testing.T) {
	api := newTestAPI(t)

	code, resp := api.register("test", "rahasia", "test")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"username": "test", "name": "test"}, profile(t, resp))

	t.Run("duplicate username", func(t *testing.T) {
		code, resp := api.register("test", "rahasia", "test")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.NotEmpty(t, resp.Errors)
	})

	t.Run("empty fields", func(t *testing.T) {
		code, resp := api.register("", "", "")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.NotEmpty(t, resp.Errors)
	})

	t.Run("trailing data after the JSON value", func(t *testing.T) {
		code, resp := api.do(http.MethodPost, "/api/users", "",
			`{"username":"other","password":"rahasia","name":"other"} trailing`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid JSON body", resp.Errors)

		code, _ = api.login("other", "rahasia")
		assert.Equal(t, http.StatusUnauthorized, code, "the request must not have registered anyone")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		code, resp := api.do(http.MethodPost, "/api/users", "", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.NotEmpty(t, resp.Errors)
	})
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	api := newTestAPI(t)

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := `{"username":"race","password":"rahasia","name":"race"}`
			req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString(body))
			rr := httptest.NewRecorder()
			api.handler.ServeHTTP(rr, req)
			codes[i] = rr.Code
		}()
	}
	wg.Wait()

	ok := 0
	for _, c := range codes {
		if c == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusBadRequest, c)
		}
	}
	assert.Equal(t, 1, ok, "exactly one registration must win")
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t)
	_, _ = api.register("test", "rahasia", "test")

	first := api.mustLogin("test", "rahasia")

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		codeA, respA := api.login("test", "salah")
		codeB, respB := api.login("salah", "salah")

		assert.Equal(t, http.StatusUnauthorized, codeA)
		assert.Equal(t, http.StatusUnauthorized, codeB)
		assert.Equal(t, "Username or password wrong", respA.Errors)
		assert.Equal(t, respA.Errors, respB.Errors)
	})

	t.Run("failed login keeps the current token", func(t *testing.T) {
		code, _ := api.do(http.MethodGet, "/api/users/current", first, "")
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("second login invalidates the first token", func(t *testing.T) {
		second := api.mustLogin("test", "rahasia")
		assert.NotEqual(t, first, second)

		code, _ := api.do(http.MethodGet, "/api/users/current", first, "")
		assert.Equal(t, http.StatusUnauthorized, code)

		code, _ = api.do(http.MethodGet, "/api/users/current", second, "")
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestGetCurrent(t *testing.T) {
	api := newTestAPI(t)
	_, _ = api.register("test", "rahasia", "test")
	token := api.mustLogin("test", "rahasia")

	code, resp := api.do(http.MethodGet, "/api/users/current", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"username": "test", "name": "test"}, profile(t, resp))

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing header", token: ""},
		{name: "unknown token", token: "salah"},
		{name: "bearer prefix is not stripped", token: "Bearer " + token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(http.MethodGet, "/api/users/current", tt.token, "")
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.Equal(t, "Unauthorized", resp.Errors)
		})
	}
}

func TestUpdateCurrent(t *testing.T) {
	api := newTestAPI(t)
	_, _ = api.register("test", "rahasia", "test")
	token := api.mustLogin("test", "rahasia")

	t.Run("name only keeps the password", func(t *testing.T) {
		code, resp := api.do(http.MethodPatch, "/api/users/current", token, `{"name":"Ilman"}`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Ilman", profile(t, resp)["name"])

		code, _ = api.login("test", "rahasia")
		assert.Equal(t, http.StatusOK, code)
		token = api.mustLogin("test", "rahasia")
	})

	t.Run("password only keeps the name", func(t *testing.T) {
		code, resp := api.do(http.MethodPatch, "/api/users/current", token, `{"password":"rahasialagi"}`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Ilman", profile(t, resp)["name"])

		code, _ = api.login("test", "rahasia")
		assert.Equal(t, http.StatusUnauthorized, code)
		token = api.mustLogin("test", "rahasialagi")
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		code, resp := api.do(http.MethodPatch, "/api/users/current", token, `{"name":""}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.NotEmpty(t, resp.Errors)
	})

	t.Run("over-long name is rejected", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"name": string(bytes.Repeat([]byte("a"), 101))})
		code, _ := api.do(http.MethodPatch, "/api/users/current", token, string(body))
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("empty object changes nothing", func(t *testing.T) {
		code, resp := api.do(http.MethodPatch, "/api/users/current", token, `{}`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Ilman", profile(t, resp)["name"])
	})

	t.Run("no body changes nothing", func(t *testing.T) {
		code, resp := api.do(http.MethodPatch, "/api/users/current", token, "")
		require.Equal(t, http.StatusOK, code, resp.Errors)
		assert.Equal(t, map[string]any{"username": "test", "name": "Ilman"}, profile(t, resp))

		code, _ = api.do(http.MethodGet, "/api/users/current", token, "")
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("requires auth", func(t *testing.T) {
		code, _ := api.do(http.MethodPatch, "/api/users/current", "salah", `{"name":"x"}`)
		assert.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestLogout(t *testing.T) {
	api := newTestAPI(t)
	_, _ = api.register("test", "rahasia", "test")
	token := api.mustLogin("test", "rahasia")

	code, resp := api.do(http.MethodDelete, "/api/users/logout", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `"ok"`, string(resp.Data))

	code, _ = api.do(http.MethodGet, "/api/users/current", token, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodDelete, "/api/users/logout", token, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	// Logging in again works after logout.
	api.mustLogin("test", "rahasia")
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/users/current", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rr := httptest.NewRecorder()

	api.handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.DBDriver = "mysql"

	_, err := server.OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}
