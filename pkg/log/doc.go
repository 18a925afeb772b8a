/*
Package log provides structured logging for loom using zerolog.

A single global Logger is configured once via Init and shared by every
package; component-scoped child loggers (WithComponent, WithAgentID,
WithWorkID, WithClaimID) attach stable fields so a sweep or a claim
attempt can be traced across log lines without repeating the field at
every call site.

Logs use a human console format by default, or JSON (for aggregation)
when Config.JSONOutput is set; level filtering happens globally via
zerolog.SetGlobalLevel, not per-logger.
*/
package log
