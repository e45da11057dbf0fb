// Package hub provides MarketDataHub, the single long-lived owner of the
// quote cache, subscription registry, throttle gate, poll scheduler and
// streaming connection.
//
// Consumers call Subscribe to obtain a Handle and read quotes through its
// Snapshot or its update mailbox. All registry and cache mutations run on
// one coordinator goroutine; stream callbacks and fetch completions are
// posted to it as commands, and network I/O never runs on it.
//
//	h := hub.New(cfg, pipeline, hub.WithStream(hub.ManagerStream(streamCfg, logger)))
//	if err := h.Start(ctx); err != nil { ... }
//	defer h.Stop(context.Background())
//
//	handle, err := h.Subscribe(ctx, "AAPL")
//	...
//	defer handle.Close()
package hub
