// Package agent manages the single long-lived agent session and the one
// in-flight run against it.
//
// Invariants:
// - The Session is acquired once and released exactly once, on every exit path.
// - No run starts before the Session is ready.
// - At most one run is in flight; a second concurrent Run call is rejected.
// - Events from a run carry strictly increasing sequence numbers starting at 1.
// - Cancellation is cooperative and leaves the Session reusable for the next run.
//
// Usage:
//
//	exec := agent.NewExecutor(agent.NewSession(backend, logger), logger)
//	exec.Start()
//	run, _ := exec.Run(ctx, "hello")
//	for ev := range run.Events() {
//		_ = ev
//	}
//	_ = exec.Close()
package agent
