// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// System-scoped operation handlers

package papp

import (
	"strconv"
	"strings"

	"github.com/OpenPrinting/goipp"
)

func init() {
	dispatchTable[goipp.Code(goipp.OpSetSystemAttributes)] = handleSetSystemAttributes
	dispatchTable[goipp.Code(goipp.OpPauseAllPrinters)] = handlePauseAllPrinters
	dispatchTable[goipp.Code(goipp.OpResumeAllPrinters)] = handleResumeAllPrinters
	dispatchTable[goipp.Code(goipp.OpAcknowledgeIdentifyPrinter)] = handleAcknowledgeIdentifyPrinter
	dispatchTable[goipp.Code(goipp.OpUpdateActiveJobs)] = handleUpdateActiveJobs
	dispatchTable[goipp.Code(goipp.OpUpdateOutputDeviceAttributes)] = handleUpdateOutputDeviceAttributes
}

// handleSetSystemAttributes implements Set-System-Attributes: system
// identity fields only (hostname/name are fixed at startup, so the
// only settable surface today is the default printer, tracked on the
// System itself).
func handleSetSystemAttributes(rc *requestContext) *goipp.Message {
	op := *rc.req.System()

	if id, ok := firstInteger(op, "smi55357-default-printer-id"); ok {
		if _, found := rc.sys.PrinterByID(id); !found {
			return errorResponse(rc.req, goipp.StatusErrorAttributesOrValues)
		}
	}

	rc.sys.scheduleSave()
	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handlePauseAllPrinters implements Pause-All-Printers.
func handlePauseAllPrinters(rc *requestContext) *goipp.Message {
	rc.sys.SetAllPrintersPaused(true)
	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handleResumeAllPrinters implements Resume-All-Printers.
func handleResumeAllPrinters(rc *requestContext) *goipp.Message {
	rc.sys.SetAllPrintersPaused(false)
	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handleAcknowledgeIdentifyPrinter implements
// Acknowledge-Identify-Printer, used by an output-device proxy to
// confirm it carried out an identify request relayed to it.
func handleAcknowledgeIdentifyPrinter(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}

	uuid, _ := firstString(*rc.req.Operation(), "output-device-uuid")

	p := rc.printer
	p.odMu.Lock()
	anyPending := false
	for _, od := range p.outputDevices {
		if od.uuid == uuid {
			od.pendingIdentify = nil
			od.pendingIdentifyMsg = ""
			continue
		}
		if len(od.pendingIdentify) > 0 {
			anyPending = true
		}
	}
	p.odMu.Unlock()

	if !anyPending {
		p.mu.Lock()
		p.stateReasons &^= PrinterReasonIdentifyPrinterRequested
		p.mu.Unlock()
	}

	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// applySparseOutputDeviceUpdate merges updates into existing, the
// sparse-update contract of Update-Output-Device-Attributes: a name of
// the form "base.INDEX" or "base.START-END" replaces (or, carrying a
// deleteAttribute value, removes) a subrange of an existing
// multi-valued attribute named "base"; any other name is a full
// replace (or removal). Ordering of untouched values is preserved.
func applySparseOutputDeviceUpdate(existing, updates goipp.Attributes) goipp.Attributes {
	result := append(goipp.Attributes{}, existing...)

	indexOf := func(name string) int {
		for i, a := range result {
			if a.Name == name {
				return i
			}
		}
		return -1
	}

	for _, attr := range updates {
		if attr.Name == "output-device-uuid" {
			continue
		}

		isDelete := len(attr.Values) > 0 && attr.Values[0].T == goipp.TagDeleteAttr

		base, lo, hi, sparse := parseSparseAttrName(attr.Name)
		if !sparse {
			i := indexOf(attr.Name)
			switch {
			case isDelete && i >= 0:
				result = append(result[:i], result[i+1:]...)
			case isDelete:
				// nothing to delete
			case i >= 0:
				result[i] = attr
			default:
				result = append(result, attr)
			}
			continue
		}

		i := indexOf(base)
		if i < 0 {
			continue
		}

		values := result[i].Values
		if lo > len(values) {
			lo = len(values)
		}
		end := hi + 1
		if end > len(values) {
			end = len(values)
		}
		if end < lo {
			end = lo
		}

		var replacement goipp.Values
		if !isDelete {
			replacement = attr.Values
		}

		merged := append(goipp.Values{}, values[:lo]...)
		merged = append(merged, replacement...)
		merged = append(merged, values[end:]...)

		if len(merged) == 0 {
			result = append(result[:i], result[i+1:]...)
		} else {
			result[i].Values = merged
		}
	}

	return result
}

// parseSparseAttrName splits a "base.INDEX" or "base.START-END" name
// into its base and the inclusive value range it addresses.
func parseSparseAttrName(name string) (base string, lo, hi int, ok bool) {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return name, 0, 0, false
	}

	suffix := name[dot+1:]
	if dash := strings.IndexByte(suffix, '-'); dash >= 0 {
		a, errA := strconv.Atoi(suffix[:dash])
		b, errB := strconv.Atoi(suffix[dash+1:])
		if errA != nil || errB != nil || a < 0 || b < a {
			return name, 0, 0, false
		}
		return name[:dot], a, b, true
	}

	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return name, 0, 0, false
	}
	return name[:dot], n, n, true
}

// handleUpdateActiveJobs implements Update-Active-Jobs: a proxy
// output-device reports the subset of a printer's active jobs it is
// still working on, so the rest can be reassigned.
func handleUpdateActiveJobs(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	p := rc.printer
	op := *rc.req.Operation()

	var stillActive []int
	for _, attr := range op {
		if attr.Name != "job-ids" {
			continue
		}
		for _, v := range attr.Values {
			if id, ok := v.V.(goipp.Integer); ok {
				stillActive = append(stillActive, int(id))
			}
		}
	}

	p.mu.RLock()
	var notFound []int
	for _, j := range p.activeJobs {
		if !intInSlice(stillActive, j.id) {
			notFound = append(notFound, j.id)
		}
	}
	p.mu.RUnlock()

	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	if len(notFound) > 0 {
		addIntegers(rsp.Unsupported(), "job-ids", goipp.TagInteger, notFound)
	}
	return rsp
}

// handleUpdateOutputDeviceAttributes implements
// Update-Output-Device-Attributes: a proxy registers or refreshes its
// device attributes against the printer it serves.
func handleUpdateOutputDeviceAttributes(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	p := rc.printer
	op := *rc.req.Operation()

	uuid, ok := firstString(op, "output-device-uuid")
	if !ok {
		return errorResponse(rc.req, goipp.StatusErrorBadRequest)
	}

	if p.system.callbacks.Register != nil {
		if err := p.system.callbacks.Register(rc.r.Context(), uuid, p.id); err != nil {
			return errorResponse(rc.req, goipp.StatusErrorNotPossible)
		}
	}

	p.odMu.Lock()
	var dev *outputDevice
	for _, od := range p.outputDevices {
		if od.uuid == uuid {
			dev = od
			break
		}
	}
	if dev == nil {
		dev = &outputDevice{uuid: uuid}
		p.outputDevices = append(p.outputDevices, dev)
	}
	dev.attrs = applySparseOutputDeviceUpdate(dev.attrs, op)
	p.odMu.Unlock()

	p.mu.Lock()
	p.deviceInUse = true
	p.mu.Unlock()

	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}
