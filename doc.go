// Package recovery provides the client-side state controllers of account
// recovery flows: activating an account with a mailed code and requesting
// a password reset.
//
// Building blocks:
//   - FormState holds field values. Fields prefilled by a previous step are
//     locked and never change from user input; any accepted edit clears the
//     messages of every action slot.
//   - ActionState tracks one submittable action (idle, pending, succeeded,
//     failed). ActionSet groups the slots of a flow and clears sibling
//     messages when one of them starts.
//   - ErrorClassifier maps a failed remote call to server_rejected (message
//     shown verbatim), unreachable (retry is safe) or unexpected.
//
// Flows:
//   - ActivationFlow validates the email and the 16 hex character code before
//     calling Service.ActivateAccount, then hands off to RouteLogin after
//     Config.ActivationHandoffDelay. ResendCode uses its own slot.
//   - ResetRequestFlow calls Service.RequestPasswordReset and hands off to
//     RouteResetConfirmation carrying the email.
//
// Remote calls run on their own goroutine and resume through the flow lock,
// so transitions are serialized per flow. Observers receive a Snapshot after
// every change. Close revokes the pending handoff and ignores late
// completions.
//
// Activity sinks:
//   - ActivitySink receives started, succeeded, failed, rejected and handoff
//     events. Sinks run best-effort (errors are logged); see the metrics
//     package for a Prometheus sink.
package recovery
