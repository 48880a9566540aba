// Package broadcast keeps the set of live real-time sessions and fans text
// events out to all of them.
//
// A Registry owns the sessions. Connect runs a Handshaker (for WebSocket, the
// one returned by Upgrade) and registers the session it yields; Disconnect
// removes and closes it. Broadcast snapshots the set, sends to every session
// concurrently with a per-send timeout and disconnects every session whose
// send failed, so a broken peer never stalls the others:
//
//	registry := broadcast.NewRegistry(broadcast.WithSendTimeout(5 * time.Second))
//	defer registry.Close()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		s, err := registry.Connect(r.Context(), broadcast.Upgrade(w, r, "alice"))
//		if err != nil {
//			return
//		}
//		defer registry.Disconnect(s)
//
//		duplex := s.(broadcast.DuplexSession)
//		for {
//			text, err := duplex.ReadText()
//			if err != nil {
//				return
//			}
//			registry.Broadcast(r.Context(), text)
//		}
//	})
//
// WebSocketSession serializes writes through one goroutine that also sends
// keepalive pings; the read deadline moves forward on every pong or frame.
// MemorySession implements the same contract in process.
package broadcast
