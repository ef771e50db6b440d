package registry

// Handle is an opaque reference to a host-side object.
// Handle 0 is reserved and always invalid. Handles are never reused
// within the lifetime of a Registry.
type Handle uint32

// TypeID tags the kind of object a handle refers to.
type TypeID uint32

const (
	TypeUnknown TypeID = iota
	TypePollable
	TypeInputStream
	TypeOutputStream
	TypeDescriptor
	TypeDirectoryEntryStream
	TypeFuture
	TypeIncomingRequest
	TypeIncomingBody
	TypeOutgoingRequest
	TypeOutgoingResponse
	TypeOutgoingBody
	TypeResponseOutparam
	TypeIncomingResponse
	TypeFields
	TypeCommand
	TypeModule
)

var typeNames = map[TypeID]string{
	TypeUnknown:              "unknown",
	TypePollable:             "pollable",
	TypeInputStream:          "input-stream",
	TypeOutputStream:         "output-stream",
	TypeDescriptor:           "descriptor",
	TypeDirectoryEntryStream: "directory-entry-stream",
	TypeFuture:               "future",
	TypeIncomingRequest:      "incoming-request",
	TypeIncomingBody:         "incoming-body",
	TypeOutgoingRequest:      "outgoing-request",
	TypeOutgoingResponse:     "outgoing-response",
	TypeOutgoingBody:         "outgoing-body",
	TypeResponseOutparam:     "response-outparam",
	TypeIncomingResponse:     "incoming-response",
	TypeFields:               "fields",
	TypeCommand:              "command",
	TypeModule:               "module",
}

func (t TypeID) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// EventType distinguishes resource lifecycle events.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventDropped
)

// Event describes one resource lifecycle transition.
type Event struct {
	Value  any
	Handle Handle
	Type   TypeID
	Kind   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by registered values that need
// cleanup when their handle is dropped.
type Dropper interface {
	Drop()
}
