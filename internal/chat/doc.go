// Package chat implements the presence-and-message-routing engine that sits
// behind the relay's transport layer.
//
// The engine owns every piece of shared chat state: the identity directory,
// room membership, the append-only message log, and ephemeral typing state.
// All of it is guarded by a single mutex so each inbound event is handled to
// completion before the next one starts. The transport layer hands the engine
// one event at a time and receives outbound events through the Conn interface.
package chat
