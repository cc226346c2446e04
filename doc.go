// Package auth keeps the single client side session of the MarketSim portal
// and decides which portal pages a visitor may see.
//
// Session lifecycle:
//   - SessionManager is the state machine. It starts Hydrating, restores the
//     stored {token, user} pair once through Hydrate and then moves between
//     Anonymous and Authenticated. Every sign out bumps an epoch so a login
//     that resolves after a logout is discarded instead of resurrecting the
//     old session.
//   - SessionStore persists the pair in a Storage (memory, a JSON file, the OS
//     keyring or SQLite through storage/bunstore). Anything that is not a
//     complete record reads as "no session" and is wiped.
//   - BearerTransport attaches the token to backend calls and turns a 401 into
//     InvalidateToken, the one path back to Anonymous for expired sessions.
//
// Portal surface:
//   - Authorize is a pure function of a Snapshot and a Requirement. While the
//     session hydrates it always answers Loading, so restored sessions never
//     see a spurious redirect.
//   - RouteGuard and PortalController expose the same rules on go-router, with
//     django views fed by TemplateHelpers.
//
// Activity sinks:
//   - ActivitySink receives an ActivityEvent for every transition. Sinks run
//     best-effort (errors are logged) so metrics or audit logs never block
//     authentication.
package auth
