package studenthub_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	studenthub "github.com/Bhavani-Nayak/studenthub"
)

func TestHTTPTransportLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("successful exchange decodes the grant", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/auth/login", r.URL.Path)

			payload := map[string]string{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "student@studenthub.edu", payload["email"])

			json.NewEncoder(w).Encode(map[string]any{
				"token": "t1",
				"user": map[string]string{
					"id": "3", "name": "Student One",
					"email": "student@studenthub.edu", "role": "student",
				},
			})
		}))
		defer srv.Close()

		transport := studenthub.NewHTTPTransport(srv.URL)
		grant, err := transport.Login(ctx, "student@studenthub.edu", "pw")
		require.NoError(t, err)
		assert.Equal(t, "t1", grant.Token)
		assert.Equal(t, "3", grant.User.ID)
		assert.Equal(t, studenthub.RoleStudent, grant.User.Role)
	})

	t.Run("401 collapses to the generic credential error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "user not found"})
		}))
		defer srv.Close()

		transport := studenthub.NewHTTPTransport(srv.URL)
		_, err := transport.Login(ctx, "nobody@studenthub.edu", "pw")
		assert.ErrorIs(t, err, studenthub.ErrInvalidCredentials)
		// Whatever detail the server leaked is discarded.
		assert.Equal(t, "Invalid credentials", studenthub.UserMessage(err))
	})

	t.Run("403 surfaces the account notice", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"message": "Your account is awaiting approval"})
		}))
		defer srv.Close()

		transport := studenthub.NewHTTPTransport(srv.URL)
		_, err := transport.Login(ctx, "pending@studenthub.edu", "pw")
		require.Error(t, err)
		assert.Equal(t, "Your account is awaiting approval", studenthub.UserMessage(err))
	})

	t.Run("non-JSON error body falls back to a generic message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("<html>Bad Gateway</html>"))
		}))
		defer srv.Close()

		transport := studenthub.NewHTTPTransport(srv.URL)
		_, err := transport.Login(ctx, "student@studenthub.edu", "pw")
		require.Error(t, err)
		assert.Equal(t, "Something went wrong, please try again", studenthub.UserMessage(err))
	})

	t.Run("unreachable backend is a transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		transport := studenthub.NewHTTPTransport(srv.URL)
		_, err := transport.Login(ctx, "student@studenthub.edu", "pw")
		assert.True(t, studenthub.IsTransportError(err))
	})

	t.Run("malformed grant is a transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"token": "", "user": map[string]string{}})
		}))
		defer srv.Close()

		transport := studenthub.NewHTTPTransport(srv.URL)
		_, err := transport.Login(ctx, "student@studenthub.edu", "pw")
		assert.True(t, studenthub.IsTransportError(err))
	})
}

func TestHTTPTransportRegister(t *testing.T) {
	ctx := context.Background()

	req := studenthub.RegistrationRequest{
		Name:            "New Student",
		Email:           "new@studenthub.edu",
		Password:        "longenoughpw",
		ConfirmPassword: "longenoughpw",
		Role:            studenthub.RoleStudent,
	}

	t.Run("201 returns a grant", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/register", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"token": "t9",
				"user":  map[string]string{"id": "9", "name": "New Student", "role": "student"},
			})
		}))
		defer srv.Close()

		result, err := studenthub.NewHTTPTransport(srv.URL).Register(ctx, req)
		require.NoError(t, err)
		assert.False(t, result.Pending)
		require.NotNil(t, result.Grant)
		assert.Equal(t, "t9", result.Grant.Token)
	})

	t.Run("202 is a pending result with the notice", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"message": "awaiting approval"})
		}))
		defer srv.Close()

		result, err := studenthub.NewHTTPTransport(srv.URL).Register(ctx, req)
		require.NoError(t, err)
		assert.True(t, result.Pending)
		assert.Nil(t, result.Grant)
		assert.Equal(t, "awaiting approval", result.Message)
	})

	t.Run("409 is the email conflict", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"message": "duplicate"})
		}))
		defer srv.Close()

		_, err := studenthub.NewHTTPTransport(srv.URL).Register(ctx, req)
		assert.ErrorIs(t, err, studenthub.ErrEmailTaken)
	})

	t.Run("400 carries the server's validation message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "email: must be a valid email address."})
		}))
		defer srv.Close()

		_, err := studenthub.NewHTTPTransport(srv.URL).Register(ctx, req)
		require.Error(t, err)
		assert.True(t, studenthub.IsValidationError(err))
		assert.Contains(t, studenthub.UserMessage(err), "valid email")
	})
}

func TestHTTPTransportFetchProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the bearer token and decodes the profile", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/profile", r.URL.Path)
			require.Equal(t, "Bearer t1", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]string{
				"id": "3", "name": "Student One", "role": "student",
			})
		}))
		defer srv.Close()

		profile, err := studenthub.NewHTTPTransport(srv.URL).FetchProfile(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "Student One", profile.Name)
	})

	t.Run("401 means the session is gone", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := studenthub.NewHTTPTransport(srv.URL).FetchProfile(ctx, "t1")
		assert.True(t, studenthub.IsSessionExpired(err))
	})

	t.Run("5xx is recoverable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := studenthub.NewHTTPTransport(srv.URL).FetchProfile(ctx, "t1")
		assert.True(t, studenthub.IsProfileError(err))
	})

	t.Run("profile with an unknown role is rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"id": "3", "role": "superuser"})
		}))
		defer srv.Close()

		_, err := studenthub.NewHTTPTransport(srv.URL).FetchProfile(ctx, "t1")
		assert.True(t, studenthub.IsProfileError(err))
	})
}

func TestHTTPTransportRedeemHandoff(t *testing.T) {
	ctx := context.Background()

	t.Run("passes the token as a query parameter", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/auth/verify", r.URL.Path)
			require.Equal(t, "abc123", r.URL.Query().Get("verify_token"))
			json.NewEncoder(w).Encode(map[string]any{
				"token": "t7",
				"user":  map[string]string{"id": "7", "role": "faculty"},
			})
		}))
		defer srv.Close()

		grant, err := studenthub.NewHTTPTransport(srv.URL).RedeemHandoff(ctx, studenthub.Handoff{Token: "abc123"})
		require.NoError(t, err)
		assert.Equal(t, "t7", grant.Token)
	})

	t.Run("rejection surfaces the server message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "This verification link is invalid or has already been used"})
		}))
		defer srv.Close()

		_, err := studenthub.NewHTTPTransport(srv.URL).RedeemHandoff(ctx, studenthub.Handoff{Token: "stale"})
		require.Error(t, err)
		assert.Contains(t, studenthub.UserMessage(err), "verification link")
	})
}
