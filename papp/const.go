// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// IPP state enums and keyword tables

package papp

// JobState is the lifecycle state of a Job, matching the IPP
// job-state enum values (RFC 8011 §5.3.7).
type JobState int

// Job states.
const (
	JobPending    JobState = 3
	JobHeld       JobState = 4
	JobProcessing JobState = 5
	JobStopped    JobState = 6
	JobCanceled   JobState = 7
	JobAborted    JobState = 8
	JobCompleted  JobState = 9
)

// String renders the job-state keyword form.
func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobHeld:
		return "pending-held"
	case JobProcessing:
		return "processing"
	case JobStopped:
		return "processing-stopped"
	case JobCanceled:
		return "canceled"
	case JobAborted:
		return "aborted"
	case JobCompleted:
		return "completed"
	}
	return "unknown"
}

// Terminal reports whether the state is one jobs never leave.
func (s JobState) Terminal() bool {
	return s >= JobCanceled
}

// Active reports whether the state belongs to Printer.activeJobs
// (anything before JobStopped, per the data model's "state < STOPPED"
// rule).
func (s JobState) Active() bool {
	return s < JobStopped
}

// JobStateReason is a single bit of the job-state-reasons bitset.
type JobStateReason int

// Job state reasons.
const JobReasonNone JobStateReason = 0

const (
	JobReasonJobIncoming JobStateReason = 1 << iota
	JobReasonJobCanceledByUser
	JobReasonAborted
	JobReasonCompletedSuccessfully
	JobReasonProcessing
	JobReasonFetchable
)

// Keywords returns the state-reasons bitset rendered as IPP keyword
// strings, defaulting to "none" if empty.
func (r JobStateReason) Keywords() []string {
	if r == JobReasonNone {
		return []string{"none"}
	}

	var out []string
	add := func(bit JobStateReason, kw string) {
		if r&bit != 0 {
			out = append(out, kw)
		}
	}
	add(JobReasonJobIncoming, "job-incoming")
	add(JobReasonJobCanceledByUser, "job-canceled-by-user")
	add(JobReasonAborted, "aborted-by-system")
	add(JobReasonCompletedSuccessfully, "job-completed-successfully")
	add(JobReasonProcessing, "job-printing")
	add(JobReasonFetchable, "job-fetchable")

	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}

// PrinterState is the lifecycle state of a Printer, matching the IPP
// printer-state enum values.
type PrinterState int

// Printer states.
const (
	PrinterIdle       PrinterState = 3
	PrinterProcessing PrinterState = 4
	PrinterStopped    PrinterState = 5
)

func (s PrinterState) String() string {
	switch s {
	case PrinterIdle:
		return "idle"
	case PrinterProcessing:
		return "processing"
	case PrinterStopped:
		return "stopped"
	}
	return "unknown"
}

// PrinterStateReason is a single bit of the printer-state-reasons
// bitset. The dynamic reasons (moving-to-paused, paused, hold-new-jobs,
// wifi-not-configured-report) are synthesised at copy time, not stored
// here, per §4.5.
type PrinterStateReason int

// Printer state reasons.
const PrinterReasonNone PrinterStateReason = 0

const (
	PrinterReasonMediaEmpty PrinterStateReason = 1 << iota
	PrinterReasonMediaJam
	PrinterReasonTonerLow
	PrinterReasonTonerEmpty
	PrinterReasonDoorOpen
	PrinterReasonMarkerSupplyLow
	PrinterReasonMarkerSupplyEmpty
	PrinterReasonIdentifyPrinterRequested
)

// Keywords renders the static reasons bitset as IPP keywords. The
// caller (Printer.copyAttributes) appends synthetic reasons and
// falls back to "none" only if the combined set is empty.
func (r PrinterStateReason) Keywords() []string {
	var out []string
	add := func(bit PrinterStateReason, kw string) {
		if r&bit != 0 {
			out = append(out, kw)
		}
	}
	add(PrinterReasonMediaEmpty, "media-empty")
	add(PrinterReasonMediaJam, "media-jam")
	add(PrinterReasonTonerLow, "toner-low")
	add(PrinterReasonTonerEmpty, "toner-empty")
	add(PrinterReasonDoorOpen, "door-open")
	add(PrinterReasonMarkerSupplyLow, "marker-supply-low")
	add(PrinterReasonMarkerSupplyEmpty, "marker-supply-empty")
	add(PrinterReasonIdentifyPrinterRequested, "identify-printer-requested")
	return out
}

// Print-quality IPP enum values.
const (
	QualityDraft  = 3
	QualityNormal = 4
	QualityHigh   = 5
)

// RawBasePort is the base TCP port for raw-socket ingest; a printer
// with id N listens on RawBasePort+N.
const RawBasePort = 9099

// RawIdleTimeoutSeconds bounds how long a raw-socket read may stay
// idle (see copyWithIdleTimeout). RawHangupGraceSeconds is declared
// but not used by the raw-ingest code.
const (
	RawIdleTimeoutSeconds  = 60
	RawHangupGraceSeconds = 10
)
