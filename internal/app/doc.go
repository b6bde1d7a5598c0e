// Package app wires the reconciliation web service: configuration, telemetry,
// the artifact store, services and the chi router.
//
// # Lifecycle
//
//	app, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return app.Run(ctx)
//
// Run blocks until ctx is cancelled. Shutdown drains in-flight requests within
// the configured timeout, removes every generated workbook and flushes telemetry.
// Errors are returned to the caller; the package never exits the process.
package app
