// Package tracelet is the Go client for the Tracelet real-time location
// service.
//
// A Client holds up to two WebSocket connections: a subscriber side that
// consumes classified location events, and an optional publisher side that
// sends position updates for a configured map. Both sides reconnect
// automatically with exponential backoff on abnormal closure, and the
// subscriber transparently replays its confirmed subscriptions on the new
// transport.
//
//	client, err := tracelet.NewClient(tracelet.Config{
//		APIKey:    os.Getenv("TRACELET_API_KEY"),
//		Namespace: "warehouse-7",
//		MapUUID:   "0b19cafe-4a1b-4b9e-9f3c-1f1df3b2a901",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	sub := client.Subscriber()
//	sub.On(classify.Positions, func(m dispatch.Message) {
//		// m.Payload holds the decoded frame
//	})
//	if err := sub.Subscribe(ctx, subscribe.TopicPositions); err != nil {
//		log.Fatal(err)
//	}
package tracelet
