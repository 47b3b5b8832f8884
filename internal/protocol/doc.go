// Package protocol implements JSON-RPC message correlation and routing.
//
// The Controller owns the request/response correlation table, the progress
// listener registry, the server-initiated request handler, and the feature
// flag cache. It outlives individual connections: the client attaches a new
// transport on every (re)connect while ids keep increasing and registered
// listeners stay in place.
package protocol
