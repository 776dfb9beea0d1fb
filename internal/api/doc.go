// Package api serves the HTTP surface a printer host would otherwise provide:
// lifecycle events in, receiver settings, the plugin admin commands (test
// connectivity, list receivers), status and the audit trail.
//
// Security:
//   - Prefer binding to localhost (default).
//   - If binding to a non-loopback address, set Token.
package api
