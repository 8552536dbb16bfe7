package rpc

// Result is the outcome of one processor invocation. A pending result carries
// the terminal response for the router to send and ack; a replied result means
// the processor handed the delivery to an asynchronous continuation that will
// perform the single sendAndAck itself. The two are mutually exclusive per
// delivery.
type Result struct {
	response Response
	replied  bool
}

// Pending wraps a terminal response for the router to deliver synchronously.
func Pending(resp Response) Result {
	return Result{response: resp}
}

// Replied marks the delivery as owned by an asynchronous continuation.
func Replied() Result {
	return Result{replied: true}
}

// IsReplied reports whether an asynchronous continuation owns the reply.
func (r Result) IsReplied() bool {
	return r.replied
}

// Response returns the pending terminal response. Only meaningful when
// IsReplied is false.
func (r Result) Response() Response {
	return r.response
}
