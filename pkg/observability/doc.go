/*
Package observability turns engine lifecycle hooks into Prometheus metrics and
structured log lines.

Hooks built here are plain [domain.LifecycleHooks] values; [Combine] fans
several of them out so metrics and logging can be attached to one engine.
*/
package observability
