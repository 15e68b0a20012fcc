package studenthub_test

import (
	"context"
	"os"
	"testing"

	"golang.org/x/crypto/bcrypt"

	studenthub "github.com/Bhavani-Nayak/studenthub"
)

func TestMain(m *testing.M) {
	studenthub.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// fakeTransport lets each test script the credential exchanges it needs.
// Calling an unscripted method is a test bug, so it panics.
type fakeTransport struct {
	loginFn    func(ctx context.Context, email, password string) (*studenthub.SessionGrant, error)
	registerFn func(ctx context.Context, req studenthub.RegistrationRequest) (*studenthub.RegisterResult, error)
	profileFn  func(ctx context.Context, token string) (*studenthub.Profile, error)
	redeemFn   func(ctx context.Context, handoff studenthub.Handoff) (*studenthub.SessionGrant, error)
}

func (f *fakeTransport) Login(ctx context.Context, email, password string) (*studenthub.SessionGrant, error) {
	if f.loginFn == nil {
		panic("unexpected Login call")
	}
	return f.loginFn(ctx, email, password)
}

func (f *fakeTransport) Register(ctx context.Context, req studenthub.RegistrationRequest) (*studenthub.RegisterResult, error) {
	if f.registerFn == nil {
		panic("unexpected Register call")
	}
	return f.registerFn(ctx, req)
}

func (f *fakeTransport) FetchProfile(ctx context.Context, token string) (*studenthub.Profile, error) {
	if f.profileFn == nil {
		panic("unexpected FetchProfile call")
	}
	return f.profileFn(ctx, token)
}

func (f *fakeTransport) RedeemHandoff(ctx context.Context, handoff studenthub.Handoff) (*studenthub.SessionGrant, error) {
	if f.redeemFn == nil {
		panic("unexpected RedeemHandoff call")
	}
	return f.redeemFn(ctx, handoff)
}

func grantFor(id, name, email string, role studenthub.Role, token string) *studenthub.SessionGrant {
	return &studenthub.SessionGrant{
		Token: token,
		User: studenthub.Profile{
			ID:    id,
			Name:  name,
			Email: email,
			Role:  role,
		},
	}
}
