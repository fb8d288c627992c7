// Package daemon ties the clipboard watcher, download queue, and workflow
// manager together behind a single-instance lock, and exposes the operations
// the IPC server forwards from the CLI.
package daemon
