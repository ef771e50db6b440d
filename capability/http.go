package capability

import (
	"context"
	"errors"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
	"github.com/tjfontaine/agent-in-a-browser-sub010/httpbridge"
	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
)

// ErrInvalidHandle reports an HTTP method called with a handle of the
// wrong type or one already dropped.
var ErrInvalidHandle = errors.New("capability: invalid handle")

// HTTPTypesHost exposes request, response, fields and body resources.
type HTTPTypesHost struct {
	reg *registry.Registry
	br  bridge.Bridge
}

func NewHTTPTypesHost(reg *registry.Registry, br bridge.Bridge) *HTTPTypesHost {
	return &HTTPTypesHost{reg: reg, br: br}
}

func (h *HTTPTypesHost) Namespace() string {
	return "wasi:http/types@0.2.0"
}

func (h *HTTPTypesHost) getFields(self uint32) (*httpbridge.Fields, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeFields)
	if err != nil {
		return nil, ErrInvalidHandle
	}
	return v.(*httpbridge.Fields), nil
}

func (h *HTTPTypesHost) ConstructorFields(_ context.Context) uint32 {
	return uint32(h.reg.Register(registry.TypeFields, httpbridge.NewFields()))
}

func (h *HTTPTypesHost) MethodFieldsGet(_ context.Context, self uint32, name string) ([][]byte, error) {
	f, err := h.getFields(self)
	if err != nil {
		return nil, err
	}
	return f.Get(name), nil
}

func (h *HTTPTypesHost) MethodFieldsSet(_ context.Context, self uint32, name string, values [][]byte) error {
	f, err := h.getFields(self)
	if err != nil {
		return err
	}
	return f.Set(name, values)
}

func (h *HTTPTypesHost) MethodFieldsAppend(_ context.Context, self uint32, name string, value []byte) error {
	f, err := h.getFields(self)
	if err != nil {
		return err
	}
	return f.Append(name, value)
}

func (h *HTTPTypesHost) MethodFieldsDelete(_ context.Context, self uint32, name string) error {
	f, err := h.getFields(self)
	if err != nil {
		return err
	}
	return f.Delete(name)
}

func (h *HTTPTypesHost) MethodFieldsEntries(_ context.Context, self uint32) ([]httpbridge.Field, error) {
	f, err := h.getFields(self)
	if err != nil {
		return nil, err
	}
	return f.Entries(), nil
}

func (h *HTTPTypesHost) MethodFieldsClone(_ context.Context, self uint32) (uint32, error) {
	f, err := h.getFields(self)
	if err != nil {
		return 0, err
	}
	return uint32(h.reg.Register(registry.TypeFields, f.Clone())), nil
}

// ConstructorOutgoingRequest adopts a fields handle as the request
// headers.
func (h *HTTPTypesHost) ConstructorOutgoingRequest(_ context.Context, headers uint32) (uint32, error) {
	f, err := h.getFields(headers)
	if err != nil {
		return 0, err
	}
	req := httpbridge.NewOutgoingRequest()
	req.Headers = f
	h.reg.Drop(registry.Handle(headers))
	return uint32(h.reg.Register(registry.TypeOutgoingRequest, req)), nil
}

func (h *HTTPTypesHost) getOutgoingRequest(self uint32) (*httpbridge.OutgoingRequest, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeOutgoingRequest)
	if err != nil {
		return nil, ErrInvalidHandle
	}
	return v.(*httpbridge.OutgoingRequest), nil
}

func (h *HTTPTypesHost) MethodOutgoingRequestSetMethod(_ context.Context, self uint32, method string) error {
	req, err := h.getOutgoingRequest(self)
	if err != nil {
		return err
	}
	req.Method = method
	return nil
}

func (h *HTTPTypesHost) MethodOutgoingRequestSetScheme(_ context.Context, self uint32, scheme string) error {
	req, err := h.getOutgoingRequest(self)
	if err != nil {
		return err
	}
	req.Scheme = scheme
	return nil
}

func (h *HTTPTypesHost) MethodOutgoingRequestSetAuthority(_ context.Context, self uint32, authority string) error {
	req, err := h.getOutgoingRequest(self)
	if err != nil {
		return err
	}
	req.Authority = authority
	return nil
}

func (h *HTTPTypesHost) MethodOutgoingRequestSetPathWithQuery(_ context.Context, self uint32, path string) error {
	req, err := h.getOutgoingRequest(self)
	if err != nil {
		return err
	}
	req.PathWithQuery = path
	return nil
}

// MethodOutgoingRequestBody hands out the request body buffer.
func (h *HTTPTypesHost) MethodOutgoingRequestBody(_ context.Context, self uint32) (uint32, error) {
	req, err := h.getOutgoingRequest(self)
	if err != nil {
		return 0, err
	}
	return uint32(h.reg.Register(registry.TypeOutgoingBody, req.Body)), nil
}

func (h *HTTPTypesHost) getOutgoingBody(self uint32) (*httpbridge.BodyBuffer, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeOutgoingBody)
	if err != nil {
		return nil, ErrInvalidHandle
	}
	return v.(*httpbridge.BodyBuffer), nil
}

func (h *HTTPTypesHost) MethodOutgoingBodyWrite(_ context.Context, self uint32, chunk []byte) error {
	b, err := h.getOutgoingBody(self)
	if err != nil {
		return err
	}
	return b.Write(chunk)
}

// StaticOutgoingBodyFinish seals the body.
func (h *HTTPTypesHost) StaticOutgoingBodyFinish(_ context.Context, self uint32) error {
	b, err := h.getOutgoingBody(self)
	if err != nil {
		return err
	}
	b.Finish()
	return nil
}

func (h *HTTPTypesHost) getIncomingRequest(self uint32) (*httpbridge.IncomingRequest, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeIncomingRequest)
	if err != nil {
		return nil, ErrInvalidHandle
	}
	return v.(*httpbridge.IncomingRequest), nil
}

func (h *HTTPTypesHost) MethodIncomingRequestMethod(_ context.Context, self uint32) (string, error) {
	req, err := h.getIncomingRequest(self)
	if err != nil {
		return "", err
	}
	return req.Method, nil
}

func (h *HTTPTypesHost) MethodIncomingRequestPathWithQuery(_ context.Context, self uint32) (string, error) {
	req, err := h.getIncomingRequest(self)
	if err != nil {
		return "", err
	}
	return req.PathWithQuery, nil
}

func (h *HTTPTypesHost) MethodIncomingRequestHeaders(_ context.Context, self uint32) (uint32, error) {
	req, err := h.getIncomingRequest(self)
	if err != nil {
		return 0, err
	}
	return uint32(h.reg.Register(registry.TypeFields, req.Headers.Clone())), nil
}

// MethodIncomingRequestConsume hands out the buffered request body as
// an input stream.
func (h *HTTPTypesHost) MethodIncomingRequestConsume(_ context.Context, self uint32) (uint32, error) {
	req, err := h.getIncomingRequest(self)
	if err != nil {
		return 0, err
	}
	return uint32(h.reg.Register(registry.TypeIncomingBody, req.Body)), nil
}

// ConstructorOutgoingResponse builds a response from a status code.
func (h *HTTPTypesHost) ConstructorOutgoingResponse(_ context.Context, status uint32) uint32 {
	return uint32(h.reg.Register(registry.TypeOutgoingResponse, httpbridge.NewResponse(int(status))))
}

func (h *HTTPTypesHost) getOutgoingResponse(self uint32) (*httpbridge.Response, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeOutgoingResponse)
	if err != nil {
		return nil, ErrInvalidHandle
	}
	return v.(*httpbridge.Response), nil
}

func (h *HTTPTypesHost) MethodOutgoingResponseHeaders(_ context.Context, self uint32) (uint32, error) {
	resp, err := h.getOutgoingResponse(self)
	if err != nil {
		return 0, err
	}
	return uint32(h.reg.Register(registry.TypeFields, resp.Headers)), nil
}

func (h *HTTPTypesHost) MethodOutgoingResponseBody(_ context.Context, self uint32) (uint32, error) {
	resp, err := h.getOutgoingResponse(self)
	if err != nil {
		return 0, err
	}
	return uint32(h.reg.Register(registry.TypeOutgoingBody, resp.Body)), nil
}

// StaticResponseOutparamSet fills the single-use out-param with the
// guest's response.
func (h *HTTPTypesHost) StaticResponseOutparamSet(_ context.Context, param uint32, response uint32) error {
	v, err := h.reg.GetTyped(registry.Handle(param), registry.TypeResponseOutparam)
	if err != nil {
		return ErrInvalidHandle
	}
	out := v.(*httpbridge.ResponseOutparam)
	resp, rerr := h.getOutgoingResponse(response)
	if rerr != nil {
		return rerr
	}
	return out.Set(resp)
}

func (h *HTTPTypesHost) getIncomingResponse(self uint32) (*httpbridge.IncomingResponse, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeIncomingResponse)
	if err != nil {
		return nil, ErrInvalidHandle
	}
	return v.(*httpbridge.IncomingResponse), nil
}

func (h *HTTPTypesHost) MethodIncomingResponseStatus(_ context.Context, self uint32) (uint32, error) {
	resp, err := h.getIncomingResponse(self)
	if err != nil {
		return 0, err
	}
	return uint32(resp.StatusCode), nil
}

func (h *HTTPTypesHost) MethodIncomingResponseHeaders(_ context.Context, self uint32) (uint32, error) {
	resp, err := h.getIncomingResponse(self)
	if err != nil {
		return 0, err
	}
	return uint32(h.reg.Register(registry.TypeFields, resp.Headers)), nil
}

func (h *HTTPTypesHost) MethodIncomingResponseConsume(_ context.Context, self uint32) (uint32, error) {
	resp, err := h.getIncomingResponse(self)
	if err != nil {
		return 0, err
	}
	return uint32(h.reg.Register(registry.TypeIncomingBody, resp.Body)), nil
}

func (h *HTTPTypesHost) getIncomingBody(self uint32) ([]byte, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeIncomingBody)
	if err != nil {
		return nil, ErrInvalidHandle
	}
	return v.([]byte), nil
}

// MethodIncomingBodyBytes returns the whole buffered body.
func (h *HTTPTypesHost) MethodIncomingBodyBytes(_ context.Context, self uint32) ([]byte, error) {
	return h.getIncomingBody(self)
}

// MethodFutureIncomingResponseGet polls the future. The outer bool is
// readiness; repeated polls before readiness return not-ready without
// consuming anything.
func (h *HTTPTypesHost) MethodFutureIncomingResponseGet(_ context.Context, self uint32) (uint32, bool, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeFuture)
	if err != nil {
		return 0, false, ErrInvalidHandle
	}
	f := v.(*bridge.Future)
	value, ferr, ok := f.TryGet()
	if !ok {
		return 0, false, nil
	}
	if ferr != nil {
		return 0, true, ferr
	}
	resp := value.(*httpbridge.IncomingResponse)
	return uint32(h.reg.Register(registry.TypeIncomingResponse, resp)), true, nil
}

// MethodFutureIncomingResponseSubscribe returns a pollable over the
// future.
func (h *HTTPTypesHost) MethodFutureIncomingResponseSubscribe(_ context.Context, self uint32) (uint32, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeFuture)
	if err != nil {
		return 0, ErrInvalidHandle
	}
	p := NewFuturePollable(h.br, v.(*bridge.Future))
	return uint32(h.reg.Register(registry.TypePollable, p)), nil
}

func (h *HTTPTypesHost) resourceDrop(_ context.Context, self uint32) {
	h.reg.Drop(registry.Handle(self))
}

func (h *HTTPTypesHost) Register() map[string]any {
	return map[string]any{
		"[constructor]fields":       h.ConstructorFields,
		"[method]fields.get":        h.MethodFieldsGet,
		"[method]fields.set":        h.MethodFieldsSet,
		"[method]fields.append":     h.MethodFieldsAppend,
		"[method]fields.delete":     h.MethodFieldsDelete,
		"[method]fields.entries":    h.MethodFieldsEntries,
		"[method]fields.clone":      h.MethodFieldsClone,
		"[constructor]outgoing-request":                h.ConstructorOutgoingRequest,
		"[method]outgoing-request.set-method":          h.MethodOutgoingRequestSetMethod,
		"[method]outgoing-request.set-scheme":          h.MethodOutgoingRequestSetScheme,
		"[method]outgoing-request.set-authority":       h.MethodOutgoingRequestSetAuthority,
		"[method]outgoing-request.set-path-with-query": h.MethodOutgoingRequestSetPathWithQuery,
		"[method]outgoing-request.body":                h.MethodOutgoingRequestBody,
		"[method]outgoing-body.write":                  h.MethodOutgoingBodyWrite,
		"[static]outgoing-body.finish":                 h.StaticOutgoingBodyFinish,
		"[method]incoming-request.method":              h.MethodIncomingRequestMethod,
		"[method]incoming-request.path-with-query":     h.MethodIncomingRequestPathWithQuery,
		"[method]incoming-request.headers":             h.MethodIncomingRequestHeaders,
		"[method]incoming-request.consume":             h.MethodIncomingRequestConsume,
		"[constructor]outgoing-response":               h.ConstructorOutgoingResponse,
		"[method]outgoing-response.headers":            h.MethodOutgoingResponseHeaders,
		"[method]outgoing-response.body":               h.MethodOutgoingResponseBody,
		"[static]response-outparam.set":                h.StaticResponseOutparamSet,
		"[method]incoming-response.status":             h.MethodIncomingResponseStatus,
		"[method]incoming-response.headers":            h.MethodIncomingResponseHeaders,
		"[method]incoming-response.consume":            h.MethodIncomingResponseConsume,
		"[method]incoming-body.bytes":                  h.MethodIncomingBodyBytes,
		"[method]future-incoming-response.get":         h.MethodFutureIncomingResponseGet,
		"[method]future-incoming-response.subscribe":   h.MethodFutureIncomingResponseSubscribe,
		"[resource-drop]fields":                   h.resourceDrop,
		"[resource-drop]outgoing-request":         h.resourceDrop,
		"[resource-drop]outgoing-response":        h.resourceDrop,
		"[resource-drop]outgoing-body":            h.resourceDrop,
		"[resource-drop]incoming-request":         h.resourceDrop,
		"[resource-drop]incoming-response":        h.resourceDrop,
		"[resource-drop]incoming-body":            h.resourceDrop,
		"[resource-drop]response-outparam":        h.resourceDrop,
		"[resource-drop]future-incoming-response": h.resourceDrop,
	}
}

// OutgoingHandlerHost dispatches guest-built requests.
type OutgoingHandlerHost struct {
	reg    *registry.Registry
	client *httpbridge.Client
}

func NewOutgoingHandlerHost(reg *registry.Registry, client *httpbridge.Client) *OutgoingHandlerHost {
	return &OutgoingHandlerHost{reg: reg, client: client}
}

func (h *OutgoingHandlerHost) Namespace() string {
	return "wasi:http/outgoing-handler@0.2.0"
}

// Handle starts the transfer and returns a future handle immediately.
func (h *OutgoingHandlerHost) Handle(ctx context.Context, request uint32) (uint32, error) {
	v, err := h.reg.GetTyped(registry.Handle(request), registry.TypeOutgoingRequest)
	if err != nil {
		return 0, ErrInvalidHandle
	}
	f := h.client.Send(ctx, v.(*httpbridge.OutgoingRequest))
	h.reg.Drop(registry.Handle(request))
	return uint32(h.reg.Register(registry.TypeFuture, f)), nil
}

func (h *OutgoingHandlerHost) Register() map[string]any {
	return map[string]any{
		"handle": h.Handle,
	}
}
