// Package studenthub implements the authentication and authorization core of
// the StudentHub student-record application: credential exchange, session
// persistence, profile hydration, role-based route guarding, and inactivity
// enforcement.
//
// Session lifecycle:
//   - Controller owns the AuthState machine. It is the only writer of session
//     state; everything else (route guard, menus, the inactivity monitor)
//     observes it through State or Subscribe. Sessions are established by
//     Login, by Register (when the role auto-logs-in), or by redeeming an
//     out-of-band verification Handoff, and destroyed by Logout, Expire, or a
//     transport-reported invalid session.
//   - Profile hydration is a separate asynchronous step keyed on the session.
//     Every hydration completion re-checks the session generation before
//     committing, so a stale fetch can never resurrect a cleared session or
//     leak a previous user's profile into a newer one.
//
// Route guarding:
//   - Evaluate maps (AuthState, required roles) to exactly one Decision:
//     render, loading, redirect-to-login, profile-recovery, or access-denied.
//     The ordering closes two races: a loading session is never misread as
//     signed-out, and an unhydrated profile is never misread as a wrong role.
//
// Reference backend:
//   - Server exposes the wire contract the Controller consumes (Fiber JSON
//     API over a Bun user repository with bcrypt hashing and HS256 tokens),
//     including the admin approval queue for roles that require review.
package studenthub
