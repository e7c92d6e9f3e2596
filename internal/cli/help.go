package cli

import (
	"fmt"
	"io"
)

func PrintExtendedHelp(out io.Writer) {
	fmt.Fprint(out, `SkySense - health app runtime

Usage:
  skysense [flags]                Run the runtime and control API
  skysense <command> [args]

Commands:
  run                             Run the runtime and control API
  status                          Show configuration and local state
  doctor                          Check the host for required tools
  profile import <file.yaml>      Save a health profile
  profile show                    Print the saved health profile
  doses [YYYY-MM-DD]              Show the dose log for a day
  markers count [YYYY-MM-DD]      Count reminders dispatched on a day
  markers prune [days]            Drop reminder markers older than days
  token [ttl]                     Issue a control API bearer token
  version                         Print the version
  help                            Show this help

Flags:
  -config <path>                  Path to config file
  -data <path>                    Path to data directory
`)
}

func PrintMarkersHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: skysense markers <command>

Commands:
  count [YYYY-MM-DD]   Count reminders dispatched on a day (default today)
  prune [days]         Keep markers from the last days (default reminders.marker_retention_days)
`)
}

func PrintProfileHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: skysense profile <command>

Commands:
  import <file.yaml>   Save a health profile locally and to the remote service
  show                 Print the saved health profile
`)
}
