// Package localapi states the contract for the local-API server and its
// connected clients (§1, §4: "the local-API server and its client
// connections" is an external collaborator; this package only states what
// pkg/dapi and pkg/session need from it).
//
// The original implementation keeps a registry of locally-connected API
// clients distinct from workers, used to forward a late dapi_res or a
// dapi_err to the client that originated the request (SPEC_FULL.md §4).
package localapi

// Clients is the local-API client registry keyed by client name. A
// WorkerSession forwards dapi_err payloads and late dapi_res deliveries
// through this contract; a concrete implementation lives outside this
// module (the local API server itself is an external collaborator).
type Clients interface {
	// Forward delivers a successful DAPI response payload to the named
	// client. Returns false if no such client is connected.
	Forward(clientName string, payload []byte) bool

	// ForwardError delivers an error payload to the named client, used by
	// the `dapi_err` command (§4.1: "forward an error payload to the local
	// API client identified in the data").
	ForwardError(clientName string, payload []byte) bool
}
