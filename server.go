package studenthub

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Server is the reference authentication backend: the JSON API the client
// Controller consumes. Fiber over a Bun user repository.
type Server struct {
	app           *fiber.App
	users         Users
	tokens        *TokenService
	logger        Logger
	sink          ActivitySink
	approvalRoles map[Role]struct{}
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithServerLogger overrides the server logger.
func WithServerLogger(logger Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServerActivitySink configures an ActivitySink for emitting auth events.
func WithServerActivitySink(sink ActivitySink) ServerOption {
	return func(s *Server) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithApprovalRoles defers the given roles to the admin approval queue:
// registrations for them get no session until an admin activates the account.
// Roles outside the set auto-log-in.
func WithApprovalRoles(roles ...Role) ServerOption {
	return func(s *Server) {
		s.approvalRoles = make(map[Role]struct{}, len(roles))
		for _, r := range roles {
			s.approvalRoles[r] = struct{}{}
		}
	}
}

// NewServer builds the API around the given stores and registers all routes.
func NewServer(users Users, tokens *TokenService, opts ...ServerOption) *Server {
	s := &Server{
		app:           fiber.New(fiber.Config{DisableStartupMessage: true}),
		users:         users,
		tokens:        tokens,
		logger:        defLogger{},
		sink:          noopActivitySink{},
		approvalRoles: map[Role]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app.Post("/auth/login", s.handleLogin)
	s.app.Post("/auth/register", s.handleRegister)
	s.app.Get("/auth/profile", s.handleProfile)
	s.app.Get("/auth/verify", s.handleVerify)

	admin := s.app.Group("/admin", s.requireRoles(RoleAdmin))
	admin.Get("/requests", s.handleListRequests)
	admin.Post("/requests/:id/approve", s.handleApproveRequest)
	admin.Post("/requests/:id/reject", s.handleRejectRequest)

	return s
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts serving on addr.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func jsonMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"message": message})
}

type serverLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r serverLoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	payload := serverLoginRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, "Please provide email and password")
	}
	if err := payload.Validate(); err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, "Please provide email and password")
	}

	// The unknown-email and wrong-password branches answer identically so the
	// endpoint cannot be used to probe which emails have accounts.
	user, err := s.users.GetByEmail(c.Context(), payload.Email)
	if err != nil {
		s.emit(c, ActivityEventLoginFailure, "", map[string]any{"identifier": payload.Email})
		return jsonMessage(c, fiber.StatusUnauthorized, ErrInvalidCredentials.Message)
	}

	if err := ComparePasswordAndHash(payload.Password, user.PasswordHash); err != nil {
		s.emit(c, ActivityEventLoginFailure, user.ID.String(), map[string]any{"identifier": payload.Email})
		return jsonMessage(c, fiber.StatusUnauthorized, ErrInvalidCredentials.Message)
	}

	if err := statusAuthError(user.Status); err != nil {
		s.emit(c, ActivityEventLoginFailure, user.ID.String(), map[string]any{
			"identifier": payload.Email,
			"status":     user.Status,
		})
		return jsonMessage(c, fiber.StatusForbidden, UserMessage(err))
	}

	if err := s.users.TrackSuccessfulLogin(c.Context(), user); err != nil {
		s.logger.Warn("failed to track login: %v", err)
	}

	token, err := s.tokens.Mint(user.Profile())
	if err != nil {
		s.logger.Error("failed to mint token: %v", err)
		return jsonMessage(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
	}

	s.emit(c, ActivityEventLoginSuccess, user.ID.String(), map[string]any{"identifier": payload.Email})
	return c.JSON(fiber.Map{"token": token, "user": user.Profile()})
}

type serverRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Validate will run validation rules
func (r serverRegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.Role, validation.In(RoleAdmin, RoleFaculty, RoleStudent)),
	)
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	payload := serverRegisterRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, "Please provide all required fields")
	}
	if err := payload.Validate(); err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, err.Error())
	}
	if payload.Role == "" {
		payload.Role = RoleStudent
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		s.logger.Error("failed to hash password: %v", err)
		return jsonMessage(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
	}

	status := UserStatusActive
	if _, deferred := s.approvalRoles[payload.Role]; deferred {
		status = UserStatusPending
	}

	user, err := s.users.Create(c.Context(), &User{
		Name:         payload.Name,
		Email:        payload.Email,
		Role:         payload.Role,
		Status:       status,
		PasswordHash: hash,
	})
	if err != nil {
		if IsConflictError(err) {
			return jsonMessage(c, fiber.StatusConflict, ErrEmailTaken.Message)
		}
		s.logger.Error("failed to create user: %v", err)
		return jsonMessage(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
	}

	s.emit(c, ActivityEventRegistered, user.ID.String(), map[string]any{
		"identifier": user.Email,
		"pending":    status == UserStatusPending,
	})

	if status == UserStatusPending {
		return jsonMessage(c, fiber.StatusAccepted, "Registration received, your account is awaiting approval")
	}

	token, err := s.tokens.Mint(user.Profile())
	if err != nil {
		s.logger.Error("failed to mint token: %v", err)
		return jsonMessage(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token, "user": user.Profile()})
}

// authenticate resolves the bearer token to a live account. The database is
// the source of truth: a role or status change invalidates old tokens here.
func (s *Server) authenticate(c *fiber.Ctx) (*User, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, ErrSessionExpired
	}

	claims, err := s.tokens.Validate(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := s.users.GetByID(c.Context(), id)
	if err != nil {
		return nil, ErrSessionExpired
	}
	if err := statusAuthError(user.Status); err != nil {
		return nil, ErrSessionExpired
	}
	return user, nil
}

func (s *Server) handleProfile(c *fiber.Ctx) error {
	user, err := s.authenticate(c)
	if err != nil {
		return jsonMessage(c, fiber.StatusUnauthorized, UserMessage(err))
	}
	return c.JSON(user.Profile())
}

func (s *Server) handleVerify(c *fiber.Ctx) error {
	token := c.Query(handoffTokenParam)
	user, err := s.users.GetByVerifyToken(c.Context(), token)
	if err != nil {
		return jsonMessage(c, fiber.StatusUnauthorized, "This verification link is invalid or has already been used")
	}
	if err := statusAuthError(user.Status); err != nil {
		return jsonMessage(c, fiber.StatusUnauthorized, UserMessage(err))
	}

	// Single use: the marker is cleared before the grant goes out.
	if err := s.users.SetVerifyToken(c.Context(), user.ID, ""); err != nil {
		s.logger.Error("failed to clear verify token: %v", err)
		return jsonMessage(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
	}

	signed, err := s.tokens.Mint(user.Profile())
	if err != nil {
		s.logger.Error("failed to mint token: %v", err)
		return jsonMessage(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
	}

	s.emit(c, ActivityEventHandoffRedeemed, user.ID.String(), nil)
	return c.JSON(fiber.Map{"token": signed, "user": user.Profile()})
}

// requireRoles guards a route group the same way the client guard does,
// against the same permission semantics.
func (s *Server) requireRoles(roles ...Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := s.authenticate(c)
		if err != nil {
			return jsonMessage(c, fiber.StatusUnauthorized, UserMessage(err))
		}
		if len(roles) > 0 && !RolesInclude(roles, user.Role) {
			return jsonMessage(c, fiber.StatusForbidden,
				"This action requires the "+RoleNames(roles)+" role; you are signed in as "+string(user.Role))
		}
		c.Locals("actor", user)
		return c.Next()
	}
}

func (s *Server) handleListRequests(c *fiber.Ctx) error {
	pending, err := s.users.ListByStatus(c.Context(), UserStatusPending)
	if err != nil {
		s.logger.Error("failed to list pending accounts: %v", err)
		return jsonMessage(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
	}

	profiles := make([]Profile, 0, len(pending))
	for _, user := range pending {
		profiles = append(profiles, user.Profile())
	}
	return c.JSON(fiber.Map{"requests": profiles})
}

func (s *Server) handleApproveRequest(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, "Invalid account id")
	}

	user, err := s.users.UpdateStatus(c.Context(), id, UserStatusActive)
	if err != nil {
		return s.statusUpdateError(c, err)
	}

	// The verification handoff an approval email would carry. The reference
	// server returns it inline; a deployment delivers it out of band.
	verifyToken := newVerifyToken()
	if err := s.users.SetVerifyToken(c.Context(), user.ID, verifyToken); err != nil {
		s.logger.Error("failed to set verify token: %v", err)
		return jsonMessage(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
	}

	s.emitStatusChange(c, user, UserStatusPending, UserStatusActive)
	return c.JSON(fiber.Map{
		"message":      "Account approved",
		"verify_token": verifyToken,
	})
}

func (s *Server) handleRejectRequest(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return jsonMessage(c, fiber.StatusBadRequest, "Invalid account id")
	}

	user, err := s.users.UpdateStatus(c.Context(), id, UserStatusDisabled)
	if err != nil {
		return s.statusUpdateError(c, err)
	}

	s.emitStatusChange(c, user, UserStatusPending, UserStatusDisabled)
	return c.JSON(fiber.Map{"message": "Account rejected"})
}

func (s *Server) statusUpdateError(c *fiber.Ctx, err error) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		switch rich.TextCode {
		case "IDENTITY_NOT_FOUND":
			return jsonMessage(c, fiber.StatusNotFound, "Account not found")
		case "INVALID_STATUS_TRANSITION":
			return jsonMessage(c, fiber.StatusConflict, "Account is not awaiting approval")
		}
	}
	s.logger.Error("failed to update account status: %v", err)
	return jsonMessage(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
}

func (s *Server) emit(c *fiber.Ctx, eventType ActivityEventType, subjectID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		SubjectID: subjectID,
		Metadata:  metadata,
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if err := s.sink.Record(c.Context(), event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Server) emitStatusChange(c *fiber.Ctx, user *User, from, to UserStatus) {
	event := ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		SubjectID:  user.ID.String(),
		FromStatus: from,
		ToStatus:   to,
		Metadata:   map[string]any{},
	}
	if err := s.sink.Record(c.Context(), event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
