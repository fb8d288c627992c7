// Package workflow drives the download queue. A single manager goroutine
// pulls the oldest pending job, runs it through the download stage, and
// persists the outcome. Jobs run strictly one at a time; retryable failures
// go back to the end of the line until the retry ceiling is reached.
package workflow
