// Package sessioncore is the session and role-based access control core
// shared by the KPpay frontend suite (administrative console, merchant web
// application, mobile shell). It stores authentication credentials, keeps
// them fresh, derives a normalized role from them, and gates navigation to
// protected screens through role policies.
//
// The package is designed around one invariant set: at most one credential
// exists per device profile, the [Manager] is its sole writer, and every
// concurrently open execution context sharing the persisted store converges
// on the last writer's state through change notifications rather than
// locking.
//
// # Architecture boundaries
//
// sessioncore is the policy core. UI rendering, query documents, and the
// remote identity backend are external collaborators: the backend is
// consumed through the [Backend] interface, persistence through
// [credential.Store], and route policies are declared by the surrounding
// application and evaluated by the guard package.
//
// # What this package must NOT do
//
//   - Mint or verify tokens — it only stores what the backend issued and
//     reads claims back out.
//   - Keep module-level session state; a [Manager] is always an explicitly
//     constructed, injected instance built via [Builder].
//   - Perform I/O in [Manager.CurrentState]; state checks run on every
//     navigation and must stay synchronous.
package sessioncore
