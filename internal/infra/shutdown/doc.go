// Package shutdown sequences process cleanup.
//
// A Handler collects hooks (close the storage engine, flush metrics) and
// runs them once, newest first, under a timeout:
//
//	ctx, stop := shutdown.WithSignals(context.Background())
//	defer stop()
//	h := shutdown.NewHandler(0)
//	h.OnShutdown(func(context.Context) error { return engine.Close() })
//	...
//	err := h.Shutdown()
package shutdown
