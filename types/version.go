package types

// Version is the canonical project version.
// The CLI, the worker protocol and the handoff document share this version.
const Version = "0.3.0"

// ProtocolVersion is the worker event protocol version advertised to the worker.
const ProtocolVersion = "1"
