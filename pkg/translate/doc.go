// Package translate provides a streaming speech-translation WebSocket client.
//
// A Client owns one session against the vendor endpoint: it sends the init
// frame, streams PCM audio and image frames, keeps the connection alive with
// heartbeats, and demultiplexes inbound frames into text, audio, error, open,
// and close callbacks. Transient faults (malformed frames, vendor error
// frames, receive timeouts with a live connection) never terminate the
// session; connect failures, failed liveness probes, and remote closure do.
package translate
