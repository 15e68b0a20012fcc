package studenthub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// RegistrationRequest carries the fields submitted by the signup form.
type RegistrationRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	Role            Role   `json:"role"`
}

// Validate will run validation rules
func (r RegistrationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(
			&r.Role,
			validation.Required,
			validation.In(RoleAdmin, RoleFaculty, RoleStudent),
		),
	)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// RegisterResult is the outcome of a registration exchange. Pending means the
// backend accepted the account but deferred it to the approval queue, so no
// session was established.
type RegisterResult struct {
	Grant   *SessionGrant
	Pending bool
	Message string
}

// Transport is the credential exchange contract the Controller depends on.
// Implementations talk to the authentication backend; the Controller never
// sees wire-level details.
type Transport interface {
	Login(ctx context.Context, email, password string) (*SessionGrant, error)
	Register(ctx context.Context, req RegistrationRequest) (*RegisterResult, error)
	FetchProfile(ctx context.Context, token string) (*Profile, error)
	RedeemHandoff(ctx context.Context, handoff Handoff) (*SessionGrant, error)
}

// HTTPTransport implements Transport over the JSON wire contract:
//
//	POST /auth/login    {email,password}            -> 200 {token,user}
//	POST /auth/register {name,email,password,role}  -> 201 {token,user} | 202 {message}
//	GET  /auth/profile  (Authorization: Bearer)     -> 200 {id,name,email,role}
//	GET  /auth/verify?verify_token=...              -> 200 {token,user}
//
// Every non-2xx body is expected to be {message}; bodies that fail to parse
// fall back to a generic message.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// HTTPTransportOption customizes the transport.
type HTTPTransportOption func(*HTTPTransport)

// WithHTTPClient overrides the underlying client (timeouts, proxies, tests).
func WithHTTPClient(client *http.Client) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithTransportLogger overrides the transport logger.
func WithTransportLogger(logger Logger) HTTPTransportOption {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewHTTPTransport returns a transport rooted at baseURL, e.g.
// "https://api.studenthub.example.com".
func NewHTTPTransport(baseURL string, opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  defLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login implements Transport. Any credential rejection comes back as
// ErrInvalidCredentials regardless of what the server said, so unknown email
// and wrong password are indistinguishable to the caller.
func (t *HTTPTransport) Login(ctx context.Context, email, password string) (*SessionGrant, error) {
	resp, err := t.postJSON(ctx, "/auth/login", loginPayload{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return t.decodeGrant(resp.Body)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case resp.StatusCode == http.StatusForbidden:
		return nil, goerrors.New(t.apiMessage(resp.Body), goerrors.CategoryAuth).
			WithTextCode(textCodeAccountBlocked).
			WithCode(goerrors.CodeUnauthorized)
	default:
		t.logger.Error("login unexpected status: %d", resp.StatusCode)
		return nil, ErrTransportFailure
	}
}

// Register implements Transport.
func (t *HTTPTransport) Register(ctx context.Context, req RegistrationRequest) (*RegisterResult, error) {
	resp, err := t.postJSON(ctx, "/auth/register", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		grant, err := t.decodeGrant(resp.Body)
		if err != nil {
			return nil, err
		}
		return &RegisterResult{Grant: grant}, nil
	case http.StatusAccepted:
		return &RegisterResult{Pending: true, Message: t.apiMessage(resp.Body)}, nil
	case http.StatusConflict:
		return nil, ErrEmailTaken
	case http.StatusBadRequest:
		return nil, goerrors.New(t.apiMessage(resp.Body), goerrors.CategoryValidation).
			WithTextCode(textCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	default:
		t.logger.Error("register unexpected status: %d", resp.StatusCode)
		return nil, ErrTransportFailure
	}
}

// FetchProfile implements Transport. A 401 means the backend no longer honors
// the session; every other failure is recoverable and leaves the session alone.
func (t *HTTPTransport) FetchProfile(ctx context.Context, token string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/auth/profile", nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build profile request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("profile fetch failed: %v", err)
		return nil, goerrors.Wrap(err, ErrProfileUnavailable.Category, ErrProfileUnavailable.Message).
			WithTextCode(ErrProfileUnavailable.TextCode)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		profile := &Profile{}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(profile); err != nil {
			return nil, goerrors.Wrap(err, ErrProfileUnavailable.Category, ErrProfileUnavailable.Message).
				WithTextCode(ErrProfileUnavailable.TextCode)
		}
		if profile.ID == "" || !profile.Role.IsValid() {
			return nil, ErrProfileUnavailable
		}
		return profile, nil
	case http.StatusUnauthorized:
		return nil, ErrSessionExpired
	default:
		t.logger.Warn("profile fetch unexpected status: %d", resp.StatusCode)
		return nil, ErrProfileUnavailable
	}
}

// RedeemHandoff implements Transport.
func (t *HTTPTransport) RedeemHandoff(ctx context.Context, handoff Handoff) (*SessionGrant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/auth/verify", nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build verify request")
	}
	q := req.URL.Query()
	q.Set(handoffTokenParam, handoff.Token)
	req.URL.RawQuery = q.Encode()

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Error("handoff redemption failed: %v", err)
		return nil, goerrors.Wrap(err, ErrTransportFailure.Category, ErrTransportFailure.Message).
			WithTextCode(ErrTransportFailure.TextCode)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerrors.New(t.apiMessage(resp.Body), goerrors.CategoryAuth).
			WithTextCode(textCodeHandoffRejected).
			WithCode(goerrors.CodeUnauthorized)
	}
	return t.decodeGrant(resp.Body)
}

const maxBodyBytes = 1 << 20

func (t *HTTPTransport) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Error("transport request failed: %s: %v", path, err)
		return nil, goerrors.Wrap(err, ErrTransportFailure.Category, ErrTransportFailure.Message).
			WithTextCode(ErrTransportFailure.TextCode)
	}
	return resp, nil
}

func (t *HTTPTransport) decodeGrant(body io.Reader) (*SessionGrant, error) {
	grant := &SessionGrant{}
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(grant); err != nil {
		t.logger.Error("failed to decode session grant: %v", err)
		return nil, goerrors.Wrap(err, ErrTransportFailure.Category, ErrTransportFailure.Message).
			WithTextCode(ErrTransportFailure.TextCode)
	}
	if grant.Token == "" || grant.User.ID == "" || !grant.User.Role.IsValid() {
		return nil, ErrTransportFailure
	}
	return grant, nil
}

// apiMessage extracts {message} from an error body, tolerating bodies that are
// not JSON at all.
func (t *HTTPTransport) apiMessage(body io.Reader) string {
	payload := struct {
		Message string `json:"message"`
	}{}
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil || json.Unmarshal(raw, &payload) != nil || payload.Message == "" {
		return "Something went wrong, please try again"
	}
	return payload.Message
}

var _ Transport = (*HTTPTransport)(nil)
