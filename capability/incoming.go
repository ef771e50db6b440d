package capability

import (
	"github.com/tjfontaine/agent-in-a-browser-sub010/httpbridge"
	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
)

// GuestHandler is the guest's incoming-handler entry point, expressed
// in handles.
type GuestHandler func(request uint32, responseOut uint32)

// DeliverIncoming registers the request and a fresh response out-param,
// invokes the guest handler, and resolves the out-param. A handler
// that never fills its out-param still produces a response: a
// synthesized 500.
func DeliverIncoming(reg *registry.Registry, req *httpbridge.IncomingRequest, handler GuestHandler) *httpbridge.Response {
	out := httpbridge.NewResponseOutparam()
	reqHandle := reg.Register(registry.TypeIncomingRequest, req)
	outHandle := reg.Register(registry.TypeResponseOutparam, out)
	defer func() {
		reg.Drop(reqHandle)
		reg.Drop(outHandle)
	}()
	handler(uint32(reqHandle), uint32(outHandle))
	return out.Resolve()
}
