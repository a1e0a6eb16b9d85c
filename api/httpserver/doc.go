// Package httpserver provides the HTTP server that hosts the auctioneer's
// participant API.
//
// BaseServer wraps a chi router with request IDs, real-IP extraction, panic
// recovery and CORS, and adds operational endpoints next to the routes
// contributed by RouteRegistrar implementations:
//
//   - /livez and /readyz for health checks
//   - /drain and /undrain to take the instance out of a load balancer
//   - /debug/pprof when EnablePprof is set
//
// Metrics are served by a separate listener on MetricsAddr.
//
//	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
//		ListenAddr:  ":8080",
//		MetricsAddr: ":8090",
//		Log:         log,
//	}, api)
//	if err != nil {
//		return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
package httpserver
