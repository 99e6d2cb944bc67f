// Package logs reads scribe's log files for the CLI.
//
// Last returns the trailing lines of a file and Follow streams lines
// appended after an offset, starting over when the file is truncated.
// DaemonLog and JobLog locate the files the daemon writes.
package logs
