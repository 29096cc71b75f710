// Package health implements liveness, readiness and version endpoints.
//
// Liveness only says the process is up. Readiness runs every registered
// component check concurrently, each bounded by the checker timeout, and
// answers 503 when any of them fails:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("store", health.PingCheck(repo))
//	checker.RegisterCheck("scheduler", health.RunningCheck("scheduler", sched.IsRunning))
//
// The handlers do not check the request method; the server router only
// routes GET and HEAD to them.
package health
