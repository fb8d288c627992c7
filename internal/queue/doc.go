// Package queue persists download jobs in SQLite and exposes the state
// machine the workflow manager drives.
//
// A job moves queued -> active -> done, with failed attempts parking the job
// in retrying (back of the same line) until the retry ceiling is reached, at
// which point it lands in failed. Status never moves backwards: once a job
// has been active it is never queued again.
package queue
