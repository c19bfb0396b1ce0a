// Package daemon hosts the long-running echopod service: it enforces
// single-instance execution with a file lock, runs the pipeline's background
// workers, and serves the HTTP API.
package daemon
