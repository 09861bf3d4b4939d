// Package signin decides where a user goes after the auth server answers a
// sign in attempt, and carries the state the next screen needs.
//
// Routing:
//   - Router.Target classifies a SigninResult into a Stage and builds the
//     NavigationTarget for it. Unverified sessions go to one of the code
//     screens, verified OAuth sessions hard navigate to the relying party and
//     everything else lands on settings. Query parameters are preserved.
//   - OAuth completion runs through an OAuthFinisher. Failures surface as
//     ErrOAuthData so callers can render a dedicated screen.
//
// Flow:
//   - Flow wraps an Authenticator, stores the account through the
//     StoreAccountCommand and routes the result. Errors meant for the user are
//     returned as AuthUIError values mapped from the auth server errno table.
//
// State:
//   - In-app navigation state can be sealed into a short lived HS256 token
//     with StateSealer so it survives a full page load.
//
// Activity sinks:
//   - ActivitySink receives best-effort audit events for sign in attempts and
//     navigation. Sink errors are logged and never block the user.
package signin
