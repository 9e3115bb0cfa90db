package report

import "time"

// Publication is a written report together with the run that produced it.
// Sinks receive it after the report file has been replaced.
type Publication struct {
	RunID   string
	Preset  string
	RunAt   time.Time
	Matched int
	Report  Report
	Body    []byte
}
