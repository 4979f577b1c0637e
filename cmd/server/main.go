/*
main.go - Application entry point

PURPOSE:
  Command-line front of the attendance engine. One binary, several
  commands sharing the same configuration and store.

COMMANDS:
  serve       HTTP API plus the nightly recompute scheduler
  reconcile   Reconcile one employee-day and print its deviations
  recompute   Recompute and persist anomalies for a date range
  report      Print period KPIs for one or more employees
  scenario    Reset the store and load a demo scenario

STARTUP SEQUENCE (serve):
  1. Resolve configuration (defaults, attendance.yaml, ATTENDANCE_*, flags)
  2. Initialise the root zerolog logger
  3. Open the store (SQLite file, ":memory:" or the in-memory backend)
  4. Build the attendance service, HTTP handler and router
  5. Start the scheduler and the server, shut both down on SIGINT/SIGTERM

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running pass)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store

EXAMPLES:
  # Run with file database
  ./server serve --db=./data/attendance.db

  # Run with in-memory store and UTC clock
  ./server serve --backend=memory --zone=UTC

  # Monthly report
  ./server report --from=2025-03-01 --to=2025-03-31

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
