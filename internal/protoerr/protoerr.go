// Package protoerr defines the small error taxonomy shared by the wire,
// validation, and session-controller layers. Each sentinel corresponds to
// exactly one outgoing protocol response, or to none at all when the
// session must simply close.
package protoerr

import "errors"

var (
	// ErrSyntax covers oversize frames, malformed content, and the wrong
	// alternative matching at a given point in the conversation.
	// Response: SYNTAX ERROR; close.
	ErrSyntax = errors.New("protoerr: syntax error")

	// ErrLoginFailed covers a client confirmation that does not match the
	// expected value. Response: LOGIN FAILED; close.
	ErrLoginFailed = errors.New("protoerr: login failed")

	// ErrLogic covers recharge-protocol misuse: FULL POWER received while
	// not recharging, or anything but FULL POWER received while
	// recharging. Response: LOGIC ERROR; close.
	ErrLogic = errors.New("protoerr: logic error")

	// ErrTimeout covers a read deadline exceeded in either timeout
	// regime. No response is sent.
	ErrTimeout = errors.New("protoerr: timeout")

	// ErrExhaustion covers a step or obstacle-hit budget exhausted before
	// reaching the origin. No response is sent. Transport failures are not
	// mapped onto it; they surface as the underlying I/O error.
	ErrExhaustion = errors.New("protoerr: exhausted")
)
