// Package server runs the operations HTTP server next to the engines.
//
// Routes, all GET (health and version also answer HEAD):
//
//	<liveness_path>   process liveness, always 200
//	<readiness_path>  component checks, 503 when any fails
//	/version          build information
//	<metrics.path>    Prometheus exposition, when metrics are enabled
//
// Start blocks until its context is cancelled; signal handling belongs to
// the caller.
package server
