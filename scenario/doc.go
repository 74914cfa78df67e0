// Package scenario verifies that a running simulation produces an expected
// sequence of notifications.
//
// A scenario is authored before the run through a StepManager, which turns
// declarations into steps held by a StepCache:
//
//   - ordered steps run one after another (execute, wait, broadcast, check);
//   - unordered checks are activated when the ordered sequence reaches their
//     declaration and then match any notification that satisfies them, with
//     optional timing rules (never, within, after exactly, after at least);
//   - final steps run when the scenario ends.
//
// The Runner drives the cache on the engine worker. Notifications are
// buffered by a NotificationCache, so a step never misses a notification that
// was broadcast just before it became active, and values computed while the
// scenario runs flow between steps through StepFutures.
package scenario
