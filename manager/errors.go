package manager

import "errors"

// Flow terminating errors. None of these produce an error response on the
// host link; the host infers failure through its own timeout. Verification
// failures reported by the host are the one terminal case answered
// explicitly, with a flow-complete response.
var (
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrDecodingFailed = errors.New("query decoding failed")
	ErrUnknownQuery   = errors.New("unknown query request")
	ErrInvalidState   = errors.New("request not allowed in current flow state")
	ErrEncodingFailed = errors.New("response encoding failed")
	ErrAbort          = errors.New("aborted by device signal or timeout")
	ErrCardOperation  = errors.New("card operation failed")
	ErrUserRejected   = errors.New("rejected by user")
)
