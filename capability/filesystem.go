package capability

import (
	"context"

	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs"
)

// Path and open flag bits, in wire order.
const (
	PathFlagSymlinkFollow uint32 = 1 << 0

	OpenFlagCreate    uint32 = 1 << 0
	OpenFlagDirectory uint32 = 1 << 1
	OpenFlagExclusive uint32 = 1 << 2
	OpenFlagTruncate  uint32 = 1 << 3
)

// FilesystemHost exposes descriptor operations over a vfs tree.
type FilesystemHost struct {
	reg *registry.Registry
	fs  *vfs.FS
}

func NewFilesystemHost(reg *registry.Registry, fs *vfs.FS) *FilesystemHost {
	return &FilesystemHost{reg: reg, fs: fs}
}

func (h *FilesystemHost) Namespace() string {
	return "wasi:filesystem/types@0.2.0"
}

// RootHandle registers and returns a descriptor for the tree root.
func (h *FilesystemHost) RootHandle(ctx context.Context) (uint32, *vfs.Error) {
	root, err := h.fs.Root(ctx)
	if err != nil {
		return 0, asVFSError(err)
	}
	return uint32(h.reg.Register(registry.TypeDescriptor, root)), nil
}

func (h *FilesystemHost) getDescriptor(self uint32) (*vfs.Descriptor, *vfs.Error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeDescriptor)
	if err != nil {
		return nil, vfs.Err(vfs.ErrorBadDescriptor, "")
	}
	return v.(*vfs.Descriptor), nil
}

func asVFSError(err error) *vfs.Error {
	if e, ok := err.(*vfs.Error); ok {
		return e
	}
	return vfs.Err(vfs.CodeOf(err), "")
}

func openFlagsOf(bits uint32) vfs.OpenFlags {
	return vfs.OpenFlags{
		Create:    bits&OpenFlagCreate != 0,
		Directory: bits&OpenFlagDirectory != 0,
		Exclusive: bits&OpenFlagExclusive != 0,
		Truncate:  bits&OpenFlagTruncate != 0,
	}
}

func (h *FilesystemHost) MethodDescriptorGetType(ctx context.Context, self uint32) (vfs.EntryType, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return vfs.EntryTypeUnknown, herr
	}
	st, err := desc.Stat(ctx)
	if err != nil {
		return vfs.EntryTypeUnknown, asVFSError(err)
	}
	return st.Type, nil
}

func (h *FilesystemHost) MethodDescriptorStat(ctx context.Context, self uint32) (*vfs.Stat, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return nil, herr
	}
	st, err := desc.Stat(ctx)
	if err != nil {
		return nil, asVFSError(err)
	}
	return &st, nil
}

func (h *FilesystemHost) MethodDescriptorStatAt(ctx context.Context, self uint32, pathFlags uint32, path string) (*vfs.Stat, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return nil, herr
	}
	st, err := h.fs.StatAt(ctx, desc, path, pathFlags&PathFlagSymlinkFollow != 0)
	if err != nil {
		return nil, asVFSError(err)
	}
	return &st, nil
}

func (h *FilesystemHost) MethodDescriptorOpenAt(ctx context.Context, self uint32, _ uint32, path string, openFlags uint32, _ uint32) (uint32, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return 0, herr
	}
	opened, err := h.fs.OpenAt(ctx, desc, path, openFlagsOf(openFlags))
	if err != nil {
		return 0, asVFSError(err)
	}
	return uint32(h.reg.Register(registry.TypeDescriptor, opened)), nil
}

func (h *FilesystemHost) MethodDescriptorRead(ctx context.Context, self uint32, length uint64, offset uint64) ([]byte, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return nil, herr
	}
	buf := make([]byte, length)
	n, err := desc.ReadAt(ctx, buf, int64(offset))
	if err != nil {
		return nil, asVFSError(err)
	}
	return buf[:n], nil
}

func (h *FilesystemHost) MethodDescriptorWrite(ctx context.Context, self uint32, buffer []byte, offset uint64) (uint64, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return 0, herr
	}
	n, err := desc.WriteAt(ctx, buffer, int64(offset))
	if err != nil {
		return uint64(n), asVFSError(err)
	}
	return uint64(n), nil
}

func (h *FilesystemHost) MethodDescriptorSetSize(ctx context.Context, self uint32, size uint64) *vfs.Error {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return herr
	}
	if err := desc.SetSize(ctx, size); err != nil {
		return asVFSError(err)
	}
	return nil
}

func (h *FilesystemHost) MethodDescriptorSync(ctx context.Context, self uint32) *vfs.Error {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return herr
	}
	if err := desc.Flush(ctx); err != nil {
		return asVFSError(err)
	}
	return nil
}

func (h *FilesystemHost) MethodDescriptorCreateDirectoryAt(ctx context.Context, self uint32, path string) *vfs.Error {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return herr
	}
	if err := h.fs.CreateDirectoryAt(ctx, desc, path); err != nil {
		return asVFSError(err)
	}
	return nil
}

func (h *FilesystemHost) MethodDescriptorUnlinkFileAt(ctx context.Context, self uint32, path string) *vfs.Error {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return herr
	}
	if err := h.fs.UnlinkFileAt(ctx, desc, path); err != nil {
		return asVFSError(err)
	}
	return nil
}

func (h *FilesystemHost) MethodDescriptorRemoveDirectoryAt(ctx context.Context, self uint32, path string) *vfs.Error {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return herr
	}
	if err := h.fs.RemoveDirectoryAt(ctx, desc, path); err != nil {
		return asVFSError(err)
	}
	return nil
}

func (h *FilesystemHost) MethodDescriptorRenameAt(ctx context.Context, self uint32, oldPath string, newDescriptor uint32, newPath string) *vfs.Error {
	oldDesc, herr := h.getDescriptor(self)
	if herr != nil {
		return herr
	}
	newDesc, herr := h.getDescriptor(newDescriptor)
	if herr != nil {
		return herr
	}
	if err := h.fs.RenameAt(ctx, oldDesc, oldPath, newDesc, newPath); err != nil {
		return asVFSError(err)
	}
	return nil
}

func (h *FilesystemHost) MethodDescriptorSymlinkAt(ctx context.Context, self uint32, oldPath string, newPath string) *vfs.Error {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return herr
	}
	if err := h.fs.SymlinkAt(ctx, desc, oldPath, newPath); err != nil {
		return asVFSError(err)
	}
	return nil
}

func (h *FilesystemHost) MethodDescriptorReadlinkAt(ctx context.Context, self uint32, path string) (string, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return "", herr
	}
	target, err := h.fs.ReadlinkAt(ctx, desc, path)
	if err != nil {
		return "", asVFSError(err)
	}
	return target, nil
}

func (h *FilesystemHost) MethodDescriptorReadDirectory(ctx context.Context, self uint32) (uint32, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return 0, herr
	}
	stream, err := desc.ReadDirectory(ctx)
	if err != nil {
		return 0, asVFSError(err)
	}
	return uint32(h.reg.Register(registry.TypeDirectoryEntryStream, stream)), nil
}

func (h *FilesystemHost) MethodDirectoryEntryStreamReadDirectoryEntry(_ context.Context, self uint32) (*vfs.Entry, *vfs.Error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeDirectoryEntryStream)
	if err != nil {
		return nil, vfs.Err(vfs.ErrorBadDescriptor, "")
	}
	e, ok := v.(*vfs.DirectoryEntryStream).Next()
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (h *FilesystemHost) MethodDescriptorReadViaStream(ctx context.Context, self uint32, offset uint64) (uint32, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return 0, herr
	}
	stream, err := vfs.ReadViaStream(ctx, desc, offset)
	if err != nil {
		return 0, asVFSError(err)
	}
	return uint32(h.reg.Register(registry.TypeInputStream, stream)), nil
}

func (h *FilesystemHost) MethodDescriptorWriteViaStream(ctx context.Context, self uint32, offset uint64) (uint32, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return 0, herr
	}
	stream, err := vfs.WriteViaStream(ctx, desc, offset)
	if err != nil {
		return 0, asVFSError(err)
	}
	return uint32(h.reg.Register(registry.TypeOutputStream, stream)), nil
}

func (h *FilesystemHost) MethodDescriptorAppendViaStream(ctx context.Context, self uint32) (uint32, *vfs.Error) {
	desc, herr := h.getDescriptor(self)
	if herr != nil {
		return 0, herr
	}
	stream, err := vfs.AppendViaStream(ctx, desc)
	if err != nil {
		return 0, asVFSError(err)
	}
	return uint32(h.reg.Register(registry.TypeOutputStream, stream)), nil
}

func (h *FilesystemHost) MethodDescriptorIsSameObject(_ context.Context, self uint32, other uint32) bool {
	a, aerr := h.getDescriptor(self)
	b, berr := h.getDescriptor(other)
	if aerr != nil || berr != nil {
		return false
	}
	return a.Path() == b.Path()
}

func (h *FilesystemHost) ResourceDropDescriptor(_ context.Context, self uint32) {
	if desc, herr := h.getDescriptor(self); herr == nil {
		desc.Close()
	}
	h.reg.Drop(registry.Handle(self))
}

func (h *FilesystemHost) ResourceDropDirectoryEntryStream(_ context.Context, self uint32) {
	h.reg.Drop(registry.Handle(self))
}

func (h *FilesystemHost) Register() map[string]any {
	return map[string]any{
		"[method]descriptor.get-type":            h.MethodDescriptorGetType,
		"[method]descriptor.stat":                h.MethodDescriptorStat,
		"[method]descriptor.stat-at":             h.MethodDescriptorStatAt,
		"[method]descriptor.open-at":             h.MethodDescriptorOpenAt,
		"[method]descriptor.read":                h.MethodDescriptorRead,
		"[method]descriptor.write":               h.MethodDescriptorWrite,
		"[method]descriptor.set-size":            h.MethodDescriptorSetSize,
		"[method]descriptor.sync":                h.MethodDescriptorSync,
		"[method]descriptor.create-directory-at": h.MethodDescriptorCreateDirectoryAt,
		"[method]descriptor.unlink-file-at":      h.MethodDescriptorUnlinkFileAt,
		"[method]descriptor.remove-directory-at": h.MethodDescriptorRemoveDirectoryAt,
		"[method]descriptor.rename-at":           h.MethodDescriptorRenameAt,
		"[method]descriptor.symlink-at":          h.MethodDescriptorSymlinkAt,
		"[method]descriptor.readlink-at":         h.MethodDescriptorReadlinkAt,
		"[method]descriptor.read-directory":      h.MethodDescriptorReadDirectory,
		"[method]descriptor.read-via-stream":     h.MethodDescriptorReadViaStream,
		"[method]descriptor.write-via-stream":    h.MethodDescriptorWriteViaStream,
		"[method]descriptor.append-via-stream":   h.MethodDescriptorAppendViaStream,
		"[method]descriptor.is-same-object":      h.MethodDescriptorIsSameObject,
		"[method]directory-entry-stream.read-directory-entry": h.MethodDirectoryEntryStreamReadDirectoryEntry,
		"[resource-drop]descriptor":             h.ResourceDropDescriptor,
		"[resource-drop]directory-entry-stream": h.ResourceDropDirectoryEntryStream,
	}
}
