package studenthub_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	studenthub "github.com/Bhavani-Nayak/studenthub"
)

// The full loop: real backend over SQLite, real HTTP transport, real
// controller state machine.
func TestClientServerIntegration(t *testing.T) {
	ctx := context.Background()

	db := openTestDB(t, "file:"+filepath.Join(t.TempDir(), "integration.db"))
	require.NoError(t, studenthub.CreateUserSchema(ctx, db))
	repo := studenthub.NewUsersRepository(db)
	tokens := studenthub.NewTokenService([]byte("test-signing-key"), time.Hour, "studenthub", nil)
	backend := studenthub.NewServer(repo, tokens,
		studenthub.WithApprovalRoles(studenthub.RoleFaculty))

	srv := httptest.NewServer(adaptor.FiberApp(backend.App()))
	defer srv.Close()

	transport := studenthub.NewHTTPTransport(srv.URL)
	store := studenthub.NewMemoryStore()

	t.Run("register, observe, sign out", func(t *testing.T) {
		ctrl := studenthub.NewController(transport, store)

		result, err := ctrl.Register(ctx, studenthub.RegistrationRequest{
			Name:            "Student One",
			Email:           "student@studenthub.edu",
			Password:        "longenoughpw",
			ConfirmPassword: "longenoughpw",
			Role:            studenthub.RoleStudent,
		})
		require.NoError(t, err)
		assert.False(t, result.Pending)

		state := ctrl.State()
		require.NotNil(t, state.Profile)
		assert.Equal(t, studenthub.RoleStudent, state.Profile.Role)
		assert.Equal(t, studenthub.DecisionRender, studenthub.EvaluateRoute(state, "/dashboard").Decision)
		assert.Equal(t, studenthub.DecisionAccessDenied, studenthub.EvaluateRoute(state, "/users").Decision)
	})

	t.Run("a fresh controller restores the persisted session", func(t *testing.T) {
		ctrl := studenthub.NewController(transport, store)

		_, err := ctrl.Start(ctx, "/dashboard")
		require.NoError(t, err)

		state := ctrl.State()
		assert.Equal(t, studenthub.PhaseActive, state.Phase)
		require.NotNil(t, state.Profile)
		assert.Equal(t, "Student One", state.Profile.Name)
	})

	t.Run("a revoked token expires the restored session", func(t *testing.T) {
		staleStore := studenthub.NewMemoryStore()
		require.NoError(t, staleStore.SaveSession(ctx, &studenthub.Session{
			SubjectID: "3", Token: "no-longer-valid",
		}))
		ctrl := studenthub.NewController(transport, staleStore,
			studenthub.WithHydrationPolicy(2, 0))

		_, err := ctrl.Start(ctx, "/dashboard")
		assert.True(t, studenthub.IsSessionExpired(err))
		assert.False(t, ctrl.State().IsAuthenticated())
	})

	t.Run("approval queue ends in a redeemed handoff", func(t *testing.T) {
		ctrl := studenthub.NewController(transport, studenthub.NewMemoryStore())

		result, err := ctrl.Register(ctx, studenthub.RegistrationRequest{
			Name:            "Faculty One",
			Email:           "faculty@studenthub.edu",
			Password:        "longenoughpw",
			ConfirmPassword: "longenoughpw",
			Role:            studenthub.RoleFaculty,
		})
		require.NoError(t, err)
		assert.True(t, result.Pending)
		assert.False(t, ctrl.State().IsAuthenticated())

		// Admin-side approval, done directly against the store.
		pending, err := repo.ListByStatus(ctx, studenthub.UserStatusPending)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		_, err = repo.UpdateStatus(ctx, pending[0].ID, studenthub.UserStatusActive)
		require.NoError(t, err)
		require.NoError(t, repo.SetVerifyToken(ctx, pending[0].ID, "handoff-abc"))

		// The user follows the emailed link.
		nav, err := ctrl.Start(ctx, "/welcome?verify_token=handoff-abc")
		require.NoError(t, err)
		assert.Equal(t, "/welcome", nav)

		state := ctrl.State()
		assert.Equal(t, studenthub.PhaseActive, state.Phase)
		require.NotNil(t, state.Profile)
		assert.Equal(t, studenthub.RoleFaculty, state.Profile.Role)
	})
}
