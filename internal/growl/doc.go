// Package growl forwards printer lifecycle events to a Growl receiver.
//
// The pieces, leaves first:
//   - Translate maps an event name and payload to a NotificationRecord.
//   - Manager owns the single active Client and (re)registers it whenever the
//     receiver config changes. The latest requested config always wins.
//   - Dispatcher sends translated records through the active client,
//     best-effort and at most once.
//   - Admin answers the "test connectivity" and "list receivers" commands.
//
// Nothing in this package returns a failure that should stop the host: every
// network problem ends up as a log line, an event on the bus, or a
// TestResult with Success=false.
package growl
