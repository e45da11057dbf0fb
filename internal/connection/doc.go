// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains exactly one WebSocket connection to the streaming endpoint
//   - Keeps the desired symbol set subscribed, resending it in full after every connect
//   - Sends a {"type":"ping"} keepalive every 30s while connected
//   - Reconnects with capped exponential backoff after abnormal closes (code != 1000)
//   - Moves straight to Failed on authentication errors
//   - Forwards pushed quotes, state changes and server errors to a Listener
package connection
