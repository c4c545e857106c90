// Package session owns the request/response channel to one actuator.
//
// Ownership boundary:
// - the transport handle and the actuator address it is bound to
// - serialization of exchanges between concurrent callers
// - classification of transport failures versus missing replies
// - retry/backoff delay primitives (callers decide when to retry)
package session
