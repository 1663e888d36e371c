// Package reload implements the debug-mode auto-reloader.
//
// A Reloader watches the server executable and any extra files, waits for
// bursts of file system events to settle and then calls a single callback,
// which the process uses to restart itself.
package reload
