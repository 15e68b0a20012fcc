package studenthub

import (
	"time"
)

// Profile is the role/identity metadata associated with a session. It is
// fetched separately from session establishment; a session can exist while its
// profile has not resolved yet.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Session is the client's proof of authentication: the subject it was issued
// for, when, and the opaque credential handle presented back to the backend.
type Session struct {
	SubjectID string    `json:"subject_id"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Clone returns an independent copy, nil-safe.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// Clone returns an independent copy, nil-safe.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// SessionGrant is what a successful credential exchange returns: the opaque
// token plus the profile the backend includes inline.
type SessionGrant struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// sessionFromGrant builds the client session for a fresh grant.
func sessionFromGrant(grant *SessionGrant, issuedAt time.Time) *Session {
	return &Session{
		SubjectID: grant.User.ID,
		Token:     grant.Token,
		IssuedAt:  issuedAt,
	}
}
