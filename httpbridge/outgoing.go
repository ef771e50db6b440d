package httpbridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
)

// OutgoingRequest is a request the guest is assembling for Send.
type OutgoingRequest struct {
	Method        string
	Scheme        string
	Authority     string
	PathWithQuery string
	Headers       *Fields
	Body          *BodyBuffer
}

// NewOutgoingRequest returns a GET request skeleton with empty headers
// and body.
func NewOutgoingRequest() *OutgoingRequest {
	return &OutgoingRequest{
		Method:  http.MethodGet,
		Scheme:  "https",
		Headers: NewFields(),
		Body:    NewBodyBuffer(),
	}
}

// URL assembles the request target.
func (r *OutgoingRequest) URL() string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = "https"
	}
	path := r.PathWithQuery
	if path == "" {
		path = "/"
	}
	return scheme + "://" + r.Authority + path
}

// IncomingResponse is the completed result of an outgoing request.
type IncomingResponse struct {
	StatusCode int
	Headers    *Fields
	Body       []byte
}

// Dispatcher performs the actual transfer and reports the terminal
// result through complete. Exactly one call to complete is expected;
// extra calls lose the race inside the future and are ignored.
type Dispatcher func(ctx context.Context, req *OutgoingRequest, complete func(*IncomingResponse, error))

// DefaultRetryMax is how many times the built-in transport retries a
// failed transfer.
const DefaultRetryMax = 2

// Client sends outgoing requests through the execution-mode bridge.
type Client struct {
	br       bridge.Bridge
	dispatch Dispatcher
	retries  int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDispatcher overrides the transport. Suspend-mode hosts inject
// the embedder's asynchronous fetch here.
func WithDispatcher(d Dispatcher) ClientOption {
	return func(c *Client) { c.dispatch = d }
}

// WithRetries sets how many times the built-in transport retries.
// Zero means a single attempt. Ignored when the dispatcher is
// overridden.
func WithRetries(n int) ClientOption {
	return func(c *Client) { c.retries = n }
}

// NewClient builds a client over br. Without options the transport is
// a retrying HTTP client suited to block mode.
func NewClient(br bridge.Bridge, opts ...ClientOption) *Client {
	c := &Client{br: br, retries: DefaultRetryMax}
	for _, opt := range opts {
		opt(c)
	}
	if c.dispatch == nil {
		c.dispatch = retryingDispatcher(c.retries)
	}
	return c
}

// Send starts the transfer and returns immediately with the future
// that will carry the response. The future settles exactly once; when
// completion races with failure the first writer wins.
func (c *Client) Send(ctx context.Context, req *OutgoingRequest) *bridge.Future {
	req.Body.Finish()
	req.Headers.Freeze()
	return c.br.Go(func(complete func(any, error)) {
		c.dispatch(ctx, req, func(resp *IncomingResponse, err error) {
			if err != nil {
				complete(nil, err)
				return
			}
			complete(resp, nil)
		})
	})
}

// Await blocks (by the bridge's rules) until the future settles and
// returns the response.
func (c *Client) Await(ctx context.Context, f *bridge.Future) (*IncomingResponse, error) {
	aw, err := c.br.Await(ctx, f)
	if err != nil {
		return nil, err
	}
	if aw.Err() != nil {
		return nil, aw.Err()
	}
	resp, ok := aw.Value().(*IncomingResponse)
	if !ok {
		return nil, fmt.Errorf("httpbridge: unexpected future value %T", aw.Value())
	}
	return resp, nil
}

// retryingDispatcher runs the transfer on its own goroutine so a slow
// origin never stalls the bridge's dispatch loop.
func retryingDispatcher(retries int) Dispatcher {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.Logger = nil
	return func(ctx context.Context, req *OutgoingRequest, complete func(*IncomingResponse, error)) {
		go func() {
			resp, err := roundTrip(ctx, rc, req)
			complete(resp, err)
		}()
	}
}

func roundTrip(ctx context.Context, rc *retryablehttp.Client, req *OutgoingRequest) (*IncomingResponse, error) {
	hr, err := retryablehttp.NewRequestWithContext(ctx, req.Method, req.URL(), bytes.NewReader(req.Body.Bytes()))
	if err != nil {
		return nil, err
	}
	for _, e := range req.Headers.Entries() {
		hr.Header.Add(e.Name, string(e.Value))
	}
	resp, err := rc.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	out := &IncomingResponse{
		StatusCode: resp.StatusCode,
		Headers:    FieldsFromHeader(resp.Header),
		Body:       body,
	}
	out.Headers.Freeze()
	return out, nil
}
