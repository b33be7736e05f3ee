// Package connection implements the Connection Manager component.
//
// A Manager:
//   - owns exactly one live WebSocket transport at a time
//   - drives the DISCONNECTED/CONNECTING/CONNECTED/RECONNECTING/CLOSING
//     state machine
//   - reconnects with exponential backoff on abnormal closure, suppressing
//     reconnection for user-initiated closes and authentication failures
//   - emits lifecycle events (connected, disconnected, reconnecting, error)
//     to registered handlers
package connection
