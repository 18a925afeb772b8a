/*
Package metrics defines loom's Prometheus instrumentation and process
health/readiness endpoints.

Metrics are registered once at package init and exposed via Handler() for
a /metrics scrape. Categories: agent counts, work-state gauges, claim
attempt/latency/hold-duration, policy selection timing, and janitor sweep
duration/reclaim counts.

HealthChecker tracks named components independently of Prometheus;
GetReadiness fails closed unless "storage" and "janitor" are both
registered and currently healthy, since neither can be skipped for a node
to serve claims correctly.
*/
package metrics
