package capability

import (
	"context"

	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs"
)

// StreamsHost exposes byte streams opened through the filesystem
// surface. Input streams are point-in-time snapshots, so blocking and
// non-blocking reads behave identically.
type StreamsHost struct {
	reg *registry.Registry
}

func NewStreamsHost(reg *registry.Registry) *StreamsHost {
	return &StreamsHost{reg: reg}
}

func (h *StreamsHost) Namespace() string {
	return "wasi:io/streams@0.2.0"
}

func (h *StreamsHost) getInput(self uint32) (*vfs.InputStream, *vfs.Error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeInputStream)
	if err != nil {
		return nil, vfs.Err(vfs.ErrorBadDescriptor, "")
	}
	return v.(*vfs.InputStream), nil
}

func (h *StreamsHost) getOutput(self uint32) (*vfs.OutputStream, *vfs.Error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeOutputStream)
	if err != nil {
		return nil, vfs.Err(vfs.ErrorBadDescriptor, "")
	}
	return v.(*vfs.OutputStream), nil
}

// MethodInputStreamRead returns up to max bytes plus an eof marker.
func (h *StreamsHost) MethodInputStreamRead(_ context.Context, self uint32, max uint64) ([]byte, bool, *vfs.Error) {
	in, herr := h.getInput(self)
	if herr != nil {
		return nil, true, herr
	}
	data, eof, err := in.Read(max)
	if err != nil {
		return nil, true, asVFSError(err)
	}
	return data, eof, nil
}

// MethodInputStreamBlockingRead is Read; snapshots never wait.
func (h *StreamsHost) MethodInputStreamBlockingRead(ctx context.Context, self uint32, max uint64) ([]byte, bool, *vfs.Error) {
	return h.MethodInputStreamRead(ctx, self, max)
}

func (h *StreamsHost) MethodInputStreamSkip(_ context.Context, self uint32, max uint64) (uint64, bool, *vfs.Error) {
	in, herr := h.getInput(self)
	if herr != nil {
		return 0, true, herr
	}
	n, eof, err := in.Skip(max)
	if err != nil {
		return 0, true, asVFSError(err)
	}
	return n, eof, nil
}

func (h *StreamsHost) MethodOutputStreamWrite(ctx context.Context, self uint32, data []byte) (uint64, *vfs.Error) {
	out, herr := h.getOutput(self)
	if herr != nil {
		return 0, herr
	}
	n, err := out.Write(ctx, data)
	if err != nil {
		return n, asVFSError(err)
	}
	return n, nil
}

func (h *StreamsHost) MethodOutputStreamBlockingWriteAndFlush(ctx context.Context, self uint32, data []byte) (uint64, *vfs.Error) {
	n, herr := h.MethodOutputStreamWrite(ctx, self, data)
	if herr != nil {
		return n, herr
	}
	return n, h.MethodOutputStreamFlush(ctx, self)
}

func (h *StreamsHost) MethodOutputStreamFlush(ctx context.Context, self uint32) *vfs.Error {
	out, herr := h.getOutput(self)
	if herr != nil {
		return herr
	}
	if err := out.Flush(ctx); err != nil {
		return asVFSError(err)
	}
	return nil
}

func (h *StreamsHost) ResourceDropInputStream(_ context.Context, self uint32) {
	if in, herr := h.getInput(self); herr == nil {
		in.Close()
	}
	h.reg.Drop(registry.Handle(self))
}

func (h *StreamsHost) ResourceDropOutputStream(_ context.Context, self uint32) {
	if out, herr := h.getOutput(self); herr == nil {
		out.Close()
	}
	h.reg.Drop(registry.Handle(self))
}

func (h *StreamsHost) Register() map[string]any {
	return map[string]any{
		"[method]input-stream.read":          h.MethodInputStreamRead,
		"[method]input-stream.blocking-read": h.MethodInputStreamBlockingRead,
		"[method]input-stream.skip":          h.MethodInputStreamSkip,
		"[method]output-stream.write":        h.MethodOutputStreamWrite,
		"[method]output-stream.blocking-write-and-flush": h.MethodOutputStreamBlockingWriteAndFlush,
		"[method]output-stream.flush":                    h.MethodOutputStreamFlush,
		"[resource-drop]input-stream":                    h.ResourceDropInputStream,
		"[resource-drop]output-stream":                   h.ResourceDropOutputStream,
	}
}
