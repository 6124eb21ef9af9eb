package types

// Version is the canonical project version.
// The CLI, the wire codec and the snapshot record layout share it.
const Version = "0.1.0"

// WireVersion is the version of the request/response wire layout.
// It changes only when a msgpack field tag is renamed or removed.
const WireVersion = "1"
