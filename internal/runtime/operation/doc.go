// Package operation runs one correlated request/response exchange over a
// fire-and-forget transport.
//
// An Operation publishes a request carrying a fresh correlation value,
// registers a listener for that value on a forward.Forwarder, and waits for a
// response the Classifier reports as Success or Failure. Each attempt has a
// deadline; when it passes the operation either retries with a new
// correlation value or resolves to a timeout. Cancellation may race with any
// of these and exactly one of them writes the Outcome.
//
// The lifecycle is:
//
//	INIT -> WAITING -> DONE_SUCCESS | DONE_FAILURE
//	WAITING -> RETRYING -> WAITING            (deadline, retries left)
//	WAITING -> DONE_TIMEOUT                   (deadline, no retries left)
//	INIT | WAITING | RETRYING -> CANCELLED
//
// A response classified StillWaiting leaves the operation in WAITING. The
// deadline keeps running unless Params.Deadline is DeadlineResetOnProgress.
package operation
