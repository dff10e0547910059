package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garnizeh/skillswap/api"
	"github.com/garnizeh/skillswap/internal/auth"
	"github.com/garnizeh/skillswap/pkg/models"
	"github.com/garnizeh/skillswap/pkg/repository/mock"
	"golang.org/x/crypto/bcrypt"
)

func addUser(t *testing.T, m *mock.Mocks, name, email, password string) int64 {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return m.UserRepo.Add(models.NewUser(name, email, string(hash)))
}

func TestAuthHandlers(t *testing.T) {
	secret := "testsecret"
	tokens := auth.NewTokenIssuer(secret, time.Hour)

	type authData struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	checkToken := func(t *testing.T, b []byte) {
		t.Helper()
		var env struct {
			Success bool     `json:"success"`
			Data    authData `json:"data"`
		}
		if err := json.Unmarshal(b, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !env.Success || env.Data.Token == "" {
			t.Fatalf("unexpected body: %s", string(b))
		}
		id, err := tokens.Parse(env.Data.Token)
		if err != nil {
			t.Fatalf("invalid token: %v", err)
		}
		if id != env.Data.User.ID {
			t.Fatalf("token user %d, body user %d", id, env.Data.User.ID)
		}
	}

	tests := []struct {
		name       string
		path       string
		body       any
		prepare    func(t *testing.T, m *mock.Mocks)
		wantStatus int
		checkBody  func(t *testing.T, body []byte)
	}{
		{
			name:       "Register_InvalidRequest",
			path:       "/register",
			body:       "not a json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Register_MissingName",
			path:       "/register",
			body:       map[string]string{"email": "alice@example.com", "password": "s3cret"},
			wantStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, b []byte) {
				if !bytes.Contains(b, []byte(`"field":"name"`)) {
					t.Fatalf("expected field error for name: %s", string(b))
				}
			},
		},
		{
			name:       "Register_BlankName",
			path:       "/register",
			body:       map[string]string{"name": "   ", "email": "alice@example.com", "password": "s3cret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Register_BadEmail",
			path:       "/register",
			body:       map[string]string{"name": "Alice", "email": "alice", "password": "s3cret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Register_ShortPassword",
			path:       "/register",
			body:       map[string]string{"name": "Alice", "email": "alice@example.com", "password": "123"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Register_Success",
			path:       "/register",
			body:       map[string]string{"name": "Alice", "email": "Alice@Example.com", "password": "s3cret"},
			wantStatus: http.StatusCreated,
			checkBody: func(t *testing.T, b []byte) {
				checkToken(t, b)
				if !bytes.Contains(b, []byte(`"email":"alice@example.com"`)) {
					t.Fatalf("email not normalized: %s", string(b))
				}
				if bytes.Contains(b, []byte("password")) {
					t.Fatalf("password leaked: %s", string(b))
				}
			},
		},
		{
			name: "Register_DuplicateEmail",
			path: "/register",
			body: map[string]string{"name": "Dup", "email": "dup@example.com", "password": "s3cret"},
			prepare: func(t *testing.T, m *mock.Mocks) {
				addUser(t, m, "Dup", "dup@example.com", "whatever")
			},
			wantStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, b []byte) {
				if !bytes.Contains(b, []byte("User already exists with this email")) {
					t.Fatalf("unexpected body: %s", string(b))
				}
			},
		},
		{
			name: "Register_RepoError",
			path: "/register",
			body: map[string]string{"name": "Err", "email": "err@example.com", "password": "s3cret"},
			prepare: func(t *testing.T, m *mock.Mocks) {
				m.UserRepo.CreateErr = fmt.Errorf("disk full")
			},
			wantStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, b []byte) {
				if bytes.Contains(b, []byte("disk full")) {
					t.Fatalf("internal detail leaked: %s", string(b))
				}
			},
		},
		{
			name:       "Login_InvalidRequest",
			path:       "/login",
			body:       "not a json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Login_MissingPassword",
			path:       "/login",
			body:       map[string]string{"email": "missing@example.com"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Login_MissingUser",
			path:       "/login",
			body:       map[string]string{"email": "missing@example.com", "password": "nop"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "Login_WrongPassword",
			path: "/login",
			body: map[string]string{"email": "c@example.com", "password": "wrongpw"},
			prepare: func(t *testing.T, m *mock.Mocks) {
				addUser(t, m, "Carol", "c@example.com", "rightpw")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "Login_Banned",
			path: "/login",
			body: map[string]string{"email": "d@example.com", "password": "hunter2"},
			prepare: func(t *testing.T, m *mock.Mocks) {
				id := addUser(t, m, "Dave", "d@example.com", "hunter2")
				m.UserRepo.Users[id].IsBanned = true
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "Login_Success",
			path: "/login",
			body: map[string]string{"email": "bob@example.com", "password": "hunter2"},
			prepare: func(t *testing.T, m *mock.Mocks) {
				addUser(t, m, "Bob", "bob@example.com", "hunter2")
			},
			wantStatus: http.StatusOK,
			checkBody:  checkToken,
		},
		{
			name:       "Signout_OK",
			path:       "/signout",
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, b []byte) {
				if !bytes.Contains(b, []byte("Logged out successfully")) {
					t.Fatalf("unexpected body: %s", string(b))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := mock.NewMocks()
			if tt.prepare != nil {
				tt.prepare(t, mocks)
			}
			handler := api.NewAuthHandler(mocks.UserRepo, tokens, bcrypt.MinCost)

			var bodyReader io.Reader
			switch b := tt.body.(type) {
			case nil:
			case string:
				bodyReader = bytes.NewReader([]byte(b))
			default:
				data, _ := json.Marshal(b)
				bodyReader = bytes.NewReader(data)
			}
			req := httptest.NewRequest(http.MethodPost, tt.path, bodyReader)
			w := httptest.NewRecorder()

			switch tt.path {
			case "/register":
				handler.Register(w, req)
			case "/login":
				handler.Login(w, req)
			case "/signout":
				handler.Signout(w, req)
			default:
				t.Fatalf("unknown path %s", tt.path)
			}

			res := w.Result()
			defer res.Body.Close()
			data, _ := io.ReadAll(res.Body)
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("%s: expected status %d got %d body=%s", tt.name, tt.wantStatus, res.StatusCode, string(data))
			}
			if tt.checkBody != nil {
				tt.checkBody(t, data)
			}
		})
	}
}

func TestLoginTouchesLastActive(t *testing.T) {
	mocks := mock.NewMocks()
	id := addUser(t, mocks, "Bob", "bob@example.com", "hunter2")
	handler := api.NewAuthHandler(mocks.UserRepo, auth.NewTokenIssuer("s", time.Hour), bcrypt.MinCost)

	body := bytes.NewReader([]byte(`{"email":"BOB@example.com","password":"hunter2"}`))
	w := httptest.NewRecorder()
	handler.Login(w, httptest.NewRequest(http.MethodPost, "/login", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	if mocks.UserRepo.Touched[id] != 1 {
		t.Fatalf("expected last active touched once, got %d", mocks.UserRepo.Touched[id])
	}
}
