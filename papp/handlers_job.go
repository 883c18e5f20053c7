// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Job-scoped operation handlers

package papp

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenPrinting/go-papp/transport"
	"github.com/OpenPrinting/goipp"
)

func init() {
	dispatchTable[goipp.Code(goipp.OpPrintJob)] = handlePrintJob
	dispatchTable[goipp.Code(goipp.OpValidateJob)] = handleValidateJob
	dispatchTable[goipp.Code(goipp.OpCreateJob)] = handleCreateJob
	dispatchTable[goipp.Code(goipp.OpSendDocument)] = handleSendDocument
	dispatchTable[goipp.Code(goipp.OpCancelJob)] = handleCancelJob
	dispatchTable[goipp.Code(goipp.OpCancelCurrentJob)] = handleCancelCurrentJob
	dispatchTable[goipp.Code(goipp.OpGetJobAttributes)] = handleGetJobAttributes
	dispatchTable[goipp.Code(goipp.OpGetJobs)] = handleGetJobs
	dispatchTable[goipp.Code(goipp.OpCloseJob)] = handleCloseJob
}

// findJob locates a job on p by the request's job-id operation
// attribute (or, for Send-Document-style requests, job-uri).
func findJob(p *Printer, req *goipp.Message) (*Job, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	op := *req.Operation()
	id, ok := firstInteger(op, "job-id")
	if !ok {
		uri, found := firstString(op, "job-uri")
		if !found {
			return nil, false
		}
		n, err := strconv.Atoi(uri[strings.LastIndexByte(uri, '/')+1:])
		if err != nil {
			return nil, false
		}
		id = n
	}
	for _, j := range p.allJobs {
		if j.id == id {
			return j, true
		}
	}
	return nil, false
}

// handlePrintJob implements Print-Job: a single-request submission
// whose document body is the HTTP request body itself, per §4.7.
// A declared document-format other than "application/octet-stream"
// is used as given; only when it is absent or generic are the leading
// bytes inspected via transport.Peeker (see sniffFormat).
func handlePrintJob(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	p := rc.printer

	op := *rc.req.Operation()
	name, _ := firstString(op, "job-name")
	username, _ := firstString(op, "requesting-user-name")
	format, _ := firstString(op, "document-format")
	fidelity, _ := firstBoolean(op, "ipp-attribute-fidelity")

	p.mu.Lock()
	job, err := createJob(p, 0, username, name, op)
	p.mu.Unlock()
	if err != nil {
		return errorResponse(rc.req, goipp.StatusErrorBusy)
	}

	// Hold the job until the whole body has been drained into the spool
	// file, so the scheduler's ticker can't pick it up mid-upload.
	job.mu.Lock()
	job.state = JobHeld
	job.mu.Unlock()

	ignored, rejected := validateDocumentAttributes(rc.r.Context(), p, op, format, fidelity, false)
	if len(rejected) > 0 && fidelity {
		job.setState(p, JobAborted)
		return errorResponse(rc.req, goipp.StatusErrorAttributesOrValues)
	}

	peek := transport.NewPeeker(rc.r.Body)
	f, err := job.openSpoolFile(p.spoolDir, sniffFormat(peek, format), "w")
	if err != nil {
		job.setState(p, JobAborted)
		return errorResponse(rc.req, goipp.StatusErrorNotPossible)
	}
	if _, err := io.Copy(f, peek); err != nil {
		f.Close()
		job.setState(p, JobAborted)
		job.removeSpoolFile()
		return errorResponse(rc.req, goipp.StatusErrorNotPossible)
	}
	f.Close()

	job.submitFile(job.spoolPath, job.format, nil, true)

	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	if len(ignored) > 0 {
		addKeywords(rsp.Unsupported(), "ignored-attributes", goipp.TagKeyword, ignored)
	}
	job.copyAttributes(rsp.Job(), nil)
	return rsp
}

// sniffFormat returns the document format to record for the spool
// file: the client-declared format if non-empty and not the generic
// "application/octet-stream", otherwise a guess from the leading
// bytes peek exposes without consuming them.
func sniffFormat(peek *transport.Peeker, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	head := make([]byte, 8)
	n, _ := peek.Read(head)
	peek.Rewind()

	switch {
	case n >= 4 && string(head[:4]) == "%PDF":
		return "application/pdf"
	case n >= 2 && head[0] == 0x1f && head[1] == 0x8b:
		return "application/octet-stream"
	case n >= 3 && string(head[:3]) == "RaS":
		return "image/pwg-raster"
	default:
		return "application/octet-stream"
	}
}

// handleValidateJob implements Validate-Job: identical preflight to
// Print-Job without ever creating a job or reading a body.
func handleValidateJob(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}

	op := *rc.req.Operation()
	format, _ := firstString(op, "document-format")
	fidelity, _ := firstBoolean(op, "ipp-attribute-fidelity")

	_, rejected := validateDocumentAttributes(rc.r.Context(), rc.printer, op, format, fidelity, true)
	if len(rejected) > 0 {
		rsp := errorResponse(rc.req, goipp.StatusErrorAttributesOrValues)
		addKeywords(rsp.Unsupported(), "rejected-attributes", goipp.TagKeyword, rejected)
		return rsp
	}

	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handleCreateJob implements Create-Job: allocates a HELD job awaiting
// Send-Document.
func handleCreateJob(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	p := rc.printer
	op := *rc.req.Operation()
	name, _ := firstString(op, "job-name")
	username, _ := firstString(op, "requesting-user-name")

	p.mu.Lock()
	job, err := createJob(p, 0, username, name, op)
	p.mu.Unlock()
	if err != nil {
		return errorResponse(rc.req, goipp.StatusErrorBusy)
	}

	job.mu.Lock()
	job.state = JobHeld
	job.mu.Unlock()

	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	job.copyAttributes(rsp.Job(), nil)
	return rsp
}

// handleSendDocument implements Send-Document: appends one document
// to a job created by Create-Job, releasing it to PENDING when
// last-document is true.
func handleSendDocument(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	job, ok := findJob(rc.printer, rc.req)
	if !ok {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}

	op := *rc.req.Operation()
	format, _ := firstString(op, "document-format")
	lastDoc, _ := firstBoolean(op, "last-document")

	peek := transport.NewPeeker(rc.r.Body)
	useFormat := sniffFormat(peek, format)

	f, err := job.openSpoolFile(rc.printer.spoolDir, useFormat, "w")
	if err != nil {
		return errorResponse(rc.req, goipp.StatusErrorNotPossible)
	}
	if _, err := io.Copy(f, peek); err != nil {
		f.Close()
		return errorResponse(rc.req, goipp.StatusErrorNotPossible)
	}
	f.Close()

	job.submitFile(job.spoolPath, useFormat, nil, lastDoc)

	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	job.copyAttributes(rsp.Job(), nil)
	return rsp
}

// handleCancelJob implements Cancel-Job.
func handleCancelJob(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	job, ok := findJob(rc.printer, rc.req)
	if !ok {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	job.cancel(rc.printer)
	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handleCancelCurrentJob implements Cancel-Current-Job: cancels
// whichever job the printer is actively processing.
func handleCancelCurrentJob(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	p := rc.printer

	p.mu.RLock()
	job := p.processingJob
	p.mu.RUnlock()

	if job == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotPossible)
	}
	job.cancel(p)
	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handleGetJobAttributes implements Get-Job-Attributes.
func handleGetJobAttributes(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	job, ok := findJob(rc.printer, rc.req)
	if !ok {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}

	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	job.copyAttributes(rsp.Job(), requestedArray(rc.req))
	return rsp
}

// handleGetJobs implements Get-Jobs, returning jobs newest-first,
// filtered by which-jobs per §8's testable property: "all" returns
// every job, "completed" only terminal jobs, "not-completed" (the
// default) only non-terminal jobs, "fetchable" only jobs carrying the
// JOB_FETCHABLE state-reason bit.
func handleGetJobs(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	p := rc.printer
	op := *rc.req.Operation()
	which, _ := firstString(op, "which-jobs")
	limit, hasLimit := firstInteger(op, "limit")
	requested := requestedArray(rc.req)

	p.mu.RLock()
	var candidates []*Job
	switch which {
	case "all":
		candidates = append(candidates, p.allJobs...)
	case "completed":
		candidates = append(candidates, p.completedJobs...)
	case "fetchable":
		candidates = append(candidates, p.allJobs...)
	default:
		candidates = append(candidates, p.activeJobs...)
	}
	p.mu.RUnlock()

	var jobs []*Job
	if which == "fetchable" {
		for _, j := range candidates {
			if j.fetchable() {
				jobs = append(jobs, j)
			}
		}
	} else {
		jobs = candidates
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].id > jobs[j].id })
	if hasLimit && limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	for _, j := range jobs {
		group := &goipp.AttributeGroup{Tag: goipp.TagJobGroup}
		j.copyAttributes(&group.Attrs, requested)
		rsp.Groups = append(rsp.Groups, group)
	}
	return rsp
}

// handleCloseJob implements Close-Job: releases a Create-Job'd job
// whose documents were all sent without last-document=true.
func handleCloseJob(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	job, ok := findJob(rc.printer, rc.req)
	if !ok {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}

	job.mu.Lock()
	if job.state == JobHeld {
		job.state = JobPending
	}
	job.mu.Unlock()
	rc.printer.wakeScheduler()

	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	job.copyAttributes(rsp.Job(), nil)
	return rsp
}
