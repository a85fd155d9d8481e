// Package bootstrap provides daemon initialization and lifecycle management.
// It reads the runtime settings, parses the server configuration document,
// resolves the configured component implementations, and wires the analysis
// chain, the introspection API, and the document watcher.
//
// Usage:
//
//	app, err := bootstrap.NewApp()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Wait for shutdown signal
//	app.WaitForShutdown()
package bootstrap
