// Package server wraps http.Server with graceful shutdown and errgroup-friendly
// lifecycle management.
//
//	srv, err := server.NewFromConfig(cfg, server.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, handler))
//	return g.Wait()
//
// Start binds the listener before returning control to the serve loop, so Addr
// reports the real port when the configured address is ":0". Stop drains
// in-flight requests for at most the shutdown timeout.
package server
