/*
Package observability turns harness lifecycle events into Prometheus metrics
and structured log lines. Both are exposed as domain.LifecycleHooks and can
be combined with LifecycleHooks.Merge.
*/
package observability
