// Package provider implements the tool provider side of the system: a typed
// MCP client over stdio/sse/http transports, a process-wide registry that
// tracks per-provider reachability, and the request-scoped resolver that
// merges the tools of the selected providers into a single catalog.
package provider
