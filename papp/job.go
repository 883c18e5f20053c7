// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Job: a unit of work owned by a Printer

package papp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OpenPrinting/goipp"
)

// Job is a unit of work: one document (or document collection)
// submitted to a Printer.
type Job struct {
	mu sync.RWMutex

	id        int
	printer   *Printer // logical back-reference, valid only while printer is reachable
	name      string
	username  string
	uuid      string
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	impressions         int
	impressionsComplete int

	state        JobState
	stateReasons JobStateReason
	stateTime    time.Time

	isCanceled atomic.Bool

	spoolPath string
	spoolFile *os.File // non-nil while actively receiving
	format    string
	message   string
	attrs     goipp.Attributes

	outputDeviceUUID string
}

// errPrinterBusy is returned by createJob when the printer already
// has maxActiveJobs active jobs (a limit of 0 means unlimited).
var errPrinterBusy = fmt.Errorf("printer busy")

// createJob allocates a new Job on p, assigns it an id (or accepts
// one loaded from persisted state when id != 0), and inserts it into
// p.allJobs and p.activeJobs. It must be called with p's write lock
// held, per the lock hierarchy in §5.
func createJob(p *Printer, id int, username, name string, reqAttrs goipp.Attributes) (*Job, error) {
	if p.maxActiveJobs > 0 && len(p.activeJobs) >= p.maxActiveJobs {
		return nil, errPrinterBusy
	}

	if id == 0 {
		p.nextJobID++
		id = p.nextJobID
	} else if id >= p.nextJobID {
		p.nextJobID = id + 1
	}

	now := time.Now()
	state := JobPending
	reasons := JobStateReason(0)
	if p.holdNewJobs {
		state = JobHeld
	}

	j := &Job{
		id:           id,
		printer:      p,
		name:         name,
		username:     username,
		uuid:         fmt.Sprintf("urn:uuid:job-%d-%d", p.id, id),
		createdAt:    now,
		state:        state,
		stateReasons: reasons,
		stateTime:    now,
		attrs:        append(goipp.Attributes{}, reqAttrs...),
	}

	p.allJobs = append(p.allJobs, j)
	p.activeJobs = append(p.activeJobs, j)

	return j, nil
}

// ID implements abstract.JobRef.
func (j *Job) ID() int { return j.id }

// Format implements abstract.JobRef.
func (j *Job) Format() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.format
}

// Attrs implements abstract.JobRef.
func (j *Job) Attrs() goipp.Attributes {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append(goipp.Attributes{}, j.attrs...)
}

// Canceled implements abstract.JobRef.
func (j *Job) Canceled() bool {
	return j.isCanceled.Load()
}

// spoolFileName derives the deterministic spool path for a job's
// nth document, per §6's "spool layout".
func spoolFileName(dir string, printerID, jobID, seq int, format string) string {
	ext := extensionForFormat(format)
	return filepath.Join(dir, fmt.Sprintf("%d-%d-%d.%s", printerID, jobID, seq, ext))
}

// extensionForFormat maps a document-format MIME type to the spool
// file extension used in the layout from §6.
func extensionForFormat(format string) string {
	switch format {
	case "image/pwg-raster":
		return "pwg"
	case "image/urf":
		return "urf"
	case "application/ipp":
		return "ipp"
	default:
		return "prn"
	}
}

// openSpoolFile creates-and-truncates the job's spool file for
// writing (mode "w"), opens it read-only (mode "r") for the driver to
// consume, or deletes it (mode "x", returning a nil file and nil
// error).
func (j *Job) openSpoolFile(dir, format, mode string) (*os.File, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	path := spoolFileName(dir, j.printer.id, j.id, 0, format)

	var f *os.File
	var err error

	switch mode {
	case "w":
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	case "x":
		os.Remove(path)
		return nil, nil
	case "r":
		f, err = os.Open(path)
	default:
		return nil, fmt.Errorf("openSpoolFile: bad mode %q", mode)
	}

	if err != nil {
		return nil, err
	}

	j.spoolPath = path
	j.format = format
	if mode == "w" {
		j.spoolFile = f
	}

	return f, nil
}

// submitFile promotes a job from HELD to PENDING once its last
// document has been received, and records the document's format and
// attributes.
func (j *Job) submitFile(path, format string, attrs goipp.Attributes, lastDocument bool) {
	j.mu.Lock()

	if j.spoolFile != nil {
		j.spoolFile.Close()
		j.spoolFile = nil
	}
	j.spoolPath = path
	j.format = format
	j.attrs = append(j.attrs, attrs...)

	wake := false
	if lastDocument && j.state == JobHeld {
		j.state = JobPending
		j.stateTime = time.Now()
		wake = true
	}
	p := j.printer

	j.mu.Unlock()

	if wake {
		p.wakeScheduler()
	}
}

// copyAttributes merges the job's stored attrs with synthesised live
// status attributes into dst, honoring requested (nil means "all").
func (j *Job) copyAttributes(dst *goipp.Attributes, requested map[string]bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	copyAttributes(dst, j.attrs, requested)

	want := func(name string) bool {
		return requested == nil || requested[name]
	}

	if want("job-id") {
		addInteger(dst, "job-id", goipp.TagInteger, j.id)
	}
	if want("job-uri") {
		addKeyword(dst, "job-uri", goipp.TagURI,
			fmt.Sprintf("%s/%d", j.printer.resourcePath(), j.id))
	}
	if want("job-printer-uri") {
		addKeyword(dst, "job-printer-uri", goipp.TagURI, j.printer.resourcePath())
	}
	if want("job-name") {
		addKeyword(dst, "job-name", goipp.TagName, j.name)
	}
	if want("job-originating-user-name") {
		addKeyword(dst, "job-originating-user-name", goipp.TagName, j.username)
	}
	if want("job-state") {
		addInteger(dst, "job-state", goipp.TagEnum, int(j.state))
	}
	if want("job-state-reasons") {
		addKeywords(dst, "job-state-reasons", goipp.TagKeyword, j.liveStateReasons())
	}
	if want("job-impressions-completed") {
		addInteger(dst, "job-impressions-completed", goipp.TagInteger, j.impressionsComplete)
	}
}

// liveStateReasons derives job-state-reasons from state, is_canceled
// and whether the spool file is still open, per §4.4's
// copyAttributes contract. Caller must hold j.mu.
func (j *Job) liveStateReasons() []string {
	reasons := j.stateReasons
	if j.isCanceled.Load() {
		reasons |= JobReasonJobCanceledByUser
	}

	switch {
	case j.state == JobProcessing:
		reasons |= JobReasonProcessing
	case j.state == JobCanceled:
		reasons |= JobReasonJobCanceledByUser
	case j.state == JobAborted:
		reasons |= JobReasonAborted
	case j.state == JobCompleted:
		reasons |= JobReasonCompletedSuccessfully
	case j.spoolFile != nil:
		reasons |= JobReasonJobIncoming
	}

	return reasons.Keywords()
}

// fetchable reports whether the job carries the JOB_FETCHABLE
// state-reason bit, used by Get-Jobs' which-jobs=fetchable filter.
func (j *Job) fetchable() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stateReasons&JobReasonFetchable != 0
}

// setState updates the job's state, keeping the printer's
// active/completed queues and processingJob pointer consistent.
// Locking follows the System/Printer/Job hierarchy: it takes p's
// write lock itself, then the job's, so callers must not already
// hold either.
func (j *Job) setState(p *Printer, s JobState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	j.mu.Lock()
	prev := j.state
	j.state = s
	j.stateTime = time.Now()
	if s == JobProcessing {
		j.startedAt = j.stateTime
	}
	if s.Terminal() || s == JobStopped {
		j.endedAt = j.stateTime
	}
	j.mu.Unlock()

	if prev.Active() && !s.Active() {
		p.moveToCompletedLocked(j)
	}
	if p.processingJob == j && s != JobProcessing {
		p.processingJob = nil
	}
}

// cancel implements Job.cancel from §4.4: if the job is processing,
// or held with its spool file still open, it asks the in-flight
// operation to stop cooperatively; otherwise it transitions directly
// to CANCELED.
func (j *Job) cancel(p *Printer) {
	j.mu.RLock()
	state := j.state
	receiving := j.spoolFile != nil
	j.mu.RUnlock()

	if state.Terminal() {
		return
	}

	if state == JobProcessing || receiving {
		j.isCanceled.Store(true)
		return
	}

	j.setState(p, JobCanceled)
	j.removeSpoolFile()
}

// removeSpoolFile deletes the job's spool file from disk, ignoring
// a missing file.
func (j *Job) removeSpoolFile() {
	j.mu.RLock()
	path := j.spoolPath
	j.mu.RUnlock()

	if path != "" {
		os.Remove(path)
	}
}

// validateDocumentAttributes enforces §4.4's document-attribute
// validation: unsupported values are rejected outright when fidelity
// is required or the operation is Validate-Job, and otherwise
// silently dropped (their names collected into ignored for the
// caller to echo as "ignored").
func validateDocumentAttributes(ctx context.Context, p *Printer, reqAttrs goipp.Attributes,
	outFormat string, fidelity bool, isValidate bool) (ignored []string, rejected []string) {

	dd := p.driverData

	for _, attr := range reqAttrs {
		ok := true
		switch attr.Name {
		case "copies":
			if v, found := firstInteger(goipp.Attributes{attr}, "copies"); found {
				ok = dd.Copies.Contains(v)
			}
		case "print-quality":
			if v, found := firstInteger(goipp.Attributes{attr}, "print-quality"); found {
				ok = intInSlice(dd.Qualities, v)
			}
		case "sides":
			if v, found := firstString(goipp.Attributes{attr}, "sides"); found {
				ok = stringInSlice(dd.Sides, v)
			}
		case "page-ranges":
			// Open Question (c): page-ranges is supported iff the
			// driver declares page-ranges-supported=true.
			ok = dd.PageRangesSupported
		}

		if ok {
			continue
		}

		if fidelity || isValidate {
			rejected = append(rejected, attr.Name)
		} else {
			ignored = append(ignored, attr.Name)
		}
	}

	return ignored, rejected
}

func intInSlice(s []int, v int) bool {
	if len(s) == 0 {
		return true
	}
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func stringInSlice(s []string, v string) bool {
	if len(s) == 0 {
		return true
	}
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
