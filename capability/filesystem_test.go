package capability

import (
	"context"
	"testing"

	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs"
	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs/memstore"
)

func newFilesystemHost(t *testing.T) (*FilesystemHost, *registry.Registry, uint32) {
	t.Helper()
	reg := registry.New()
	h := NewFilesystemHost(reg, vfs.New(memstore.New()))
	root, herr := h.RootHandle(context.Background())
	if herr != nil {
		t.Fatalf("root handle: %v", herr)
	}
	return h, reg, root
}

func TestFilesystemOpenWriteRead(t *testing.T) {
	ctx := context.Background()
	h, _, root := newFilesystemHost(t)

	fd, herr := h.MethodDescriptorOpenAt(ctx, root, 0, "data.bin", OpenFlagCreate, 0)
	if herr != nil {
		t.Fatalf("open-at: %v", herr)
	}
	n, herr := h.MethodDescriptorWrite(ctx, fd, []byte("abcdef"), 0)
	if herr != nil {
		t.Fatalf("write: %v", herr)
	}
	if n != 6 {
		t.Errorf("expected 6 bytes written, got %d", n)
	}
	data, herr := h.MethodDescriptorRead(ctx, fd, 4, 2)
	if herr != nil {
		t.Fatalf("read: %v", herr)
	}
	if string(data) != "cdef" {
		t.Errorf("expected cdef, got %q", data)
	}
	st, herr := h.MethodDescriptorStat(ctx, fd)
	if herr != nil {
		t.Fatalf("stat: %v", herr)
	}
	if st.Type != vfs.EntryTypeRegularFile || st.Size != 6 {
		t.Errorf("unexpected stat %+v", st)
	}
}

func TestFilesystemErrorsCarryCodes(t *testing.T) {
	ctx := context.Background()
	h, _, root := newFilesystemHost(t)

	_, herr := h.MethodDescriptorOpenAt(ctx, root, 0, "a/b", OpenFlagCreate, 0)
	if herr == nil || herr.Code != vfs.ErrorNoEntry {
		t.Errorf("expected no-entry for missing parent, got %v", herr)
	}

	if herr := h.MethodDescriptorCreateDirectoryAt(ctx, root, "a"); herr != nil {
		t.Fatalf("mkdir: %v", herr)
	}
	if herr := h.MethodDescriptorCreateDirectoryAt(ctx, root, "a"); herr == nil || herr.Code != vfs.ErrorExist {
		t.Errorf("expected exist, got %v", herr)
	}

	_, herr = h.MethodDescriptorStat(ctx, 9999)
	if herr == nil || herr.Code != vfs.ErrorBadDescriptor {
		t.Errorf("expected bad-descriptor for bogus handle, got %v", herr)
	}
}

func TestFilesystemDirectoryStream(t *testing.T) {
	ctx := context.Background()
	h, reg, root := newFilesystemHost(t)

	if herr := h.MethodDescriptorCreateDirectoryAt(ctx, root, "only"); herr != nil {
		t.Fatalf("mkdir: %v", herr)
	}
	sh, herr := h.MethodDescriptorReadDirectory(ctx, root)
	if herr != nil {
		t.Fatalf("read-directory: %v", herr)
	}
	e, herr := h.MethodDirectoryEntryStreamReadDirectoryEntry(ctx, sh)
	if herr != nil {
		t.Fatalf("read entry: %v", herr)
	}
	if e == nil || e.Name != "only" || e.Type != vfs.EntryTypeDirectory {
		t.Errorf("unexpected entry %+v", e)
	}
	e, herr = h.MethodDirectoryEntryStreamReadDirectoryEntry(ctx, sh)
	if herr != nil {
		t.Fatalf("read past end: %v", herr)
	}
	if e != nil {
		t.Errorf("expected exhausted stream, got %+v", e)
	}

	h.ResourceDropDirectoryEntryStream(ctx, sh)
	if _, err := reg.Get(registry.Handle(sh)); err == nil {
		t.Error("expected stream handle dropped")
	}
}

func TestFilesystemStreamsThroughHost(t *testing.T) {
	ctx := context.Background()
	h, reg, root := newFilesystemHost(t)
	streams := NewStreamsHost(reg)

	fd, herr := h.MethodDescriptorOpenAt(ctx, root, 0, "f", OpenFlagCreate, 0)
	if herr != nil {
		t.Fatalf("open: %v", herr)
	}
	out, herr := h.MethodDescriptorWriteViaStream(ctx, fd, 0)
	if herr != nil {
		t.Fatalf("write-via-stream: %v", herr)
	}
	if _, herr := streams.MethodOutputStreamBlockingWriteAndFlush(ctx, out, []byte("streamed")); herr != nil {
		t.Fatalf("write: %v", herr)
	}
	streams.ResourceDropOutputStream(ctx, out)
	h.ResourceDropDescriptor(ctx, fd)

	fd2, herr := h.MethodDescriptorOpenAt(ctx, root, 0, "f", 0, 0)
	if herr != nil {
		t.Fatalf("reopen: %v", herr)
	}
	in, herr := h.MethodDescriptorReadViaStream(ctx, fd2, 0)
	if herr != nil {
		t.Fatalf("read-via-stream: %v", herr)
	}
	data, eof, herr := streams.MethodInputStreamRead(ctx, in, 64)
	if herr != nil {
		t.Fatalf("read: %v", herr)
	}
	if !eof || string(data) != "streamed" {
		t.Errorf("expected streamed at eof, got %q eof=%v", data, eof)
	}
}
