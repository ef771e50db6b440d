package httpbridge

import (
	"sync"
)

// IncomingRequest is a request delivered to the guest handler. The
// body is fully buffered before delivery.
type IncomingRequest struct {
	Method        string
	Scheme        string
	Authority     string
	PathWithQuery string
	Headers       *Fields
	Body          []byte
}

// Response is what the handler produced, or what the host synthesized
// when it produced nothing.
type Response struct {
	StatusCode int
	Headers    *Fields
	Body       *BodyBuffer
}

// NewResponse returns a response with the given status and empty
// mutable headers and body.
func NewResponse(status int) *Response {
	return &Response{StatusCode: status, Headers: NewFields(), Body: NewBodyBuffer()}
}

// ResponseOutparam is the single-use slot a handler fills with its
// response. The second fill attempt fails; an unfilled slot yields a
// synthesized 500 so a broken handler can never hang the caller.
type ResponseOutparam struct {
	mu   sync.Mutex
	set  bool
	resp *Response
	err  error
}

// NewResponseOutparam returns an empty slot.
func NewResponseOutparam() *ResponseOutparam {
	return &ResponseOutparam{}
}

// Set fills the slot with a response.
func (o *ResponseOutparam) Set(resp *Response) error {
	return o.settle(resp, nil)
}

// Fail fills the slot with a handler error.
func (o *ResponseOutparam) Fail(err error) error {
	return o.settle(nil, err)
}

func (o *ResponseOutparam) settle(resp *Response, err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.set {
		return errOutparamSet
	}
	o.set = true
	o.resp = resp
	o.err = err
	if resp != nil {
		resp.Headers.Freeze()
	}
	return nil
}

// Taken reports whether the slot was filled.
func (o *ResponseOutparam) Taken() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set
}

type outparamSetError struct{}

func (outparamSetError) Error() string { return "httpbridge: response out-param already set" }

var errOutparamSet error = outparamSetError{}

// Handler consumes an incoming request and fills the out-param.
type Handler func(req *IncomingRequest, out *ResponseOutparam)

// Deliver invokes the handler and resolves the out-param to a
// response. A handler that returns without filling the slot, or that
// filled it with an error, gets a synthesized 500 with an empty body.
func Deliver(req *IncomingRequest, handler Handler) *Response {
	out := NewResponseOutparam()
	handler(req, out)
	return out.Resolve()
}

// Resolve finalizes the slot after the handler and any deferred work
// have settled. An unfilled or failed slot becomes a 500.
func (o *ResponseOutparam) Resolve() *Response {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.set || o.err != nil || o.resp == nil {
		resp := NewResponse(500)
		resp.Body.Finish()
		resp.Headers.Freeze()
		return resp
	}
	return o.resp
}
