// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Printer-scoped operation handlers

package papp

import (
	"github.com/OpenPrinting/go-papp/abstract"
	"github.com/OpenPrinting/goipp"
)

func init() {
	dispatchTable[goipp.Code(goipp.OpGetPrinterAttributes)] = handleGetPrinterAttributes
	dispatchTable[goipp.Code(goipp.OpPausePrinter)] = handlePausePrinter
	dispatchTable[goipp.Code(goipp.OpResumePrinter)] = handleResumePrinter
	dispatchTable[goipp.Code(goipp.OpIdentifyPrinter)] = handleIdentifyPrinter
	dispatchTable[goipp.Code(goipp.OpCreatePrinter)] = handleCreatePrinter
	dispatchTable[goipp.Code(goipp.OpDeletePrinter)] = handleDeletePrinter
	dispatchTable[goipp.Code(goipp.OpGetPrinters)] = handleGetPrinters
	dispatchTable[goipp.Code(goipp.OpSetPrinterAttributes)] = handleSetPrinterAttributes
}

// handleGetPrinterAttributes implements Get-Printer-Attributes, §4.7.
func handleGetPrinterAttributes(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}

	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	requested := requestedArray(rc.req)

	rc.printer.copyAttributes(rc.r.Context(), rsp.Printer(), requested, rc.loopback, rc.tlsOK)

	return rsp
}

// handlePausePrinter implements Pause-Printer.
func handlePausePrinter(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}

	p := rc.printer
	p.mu.Lock()
	p.isStopped = true
	p.state = PrinterStopped
	p.mu.Unlock()

	rc.sys.scheduleSave()
	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handleResumePrinter implements Resume-Printer.
func handleResumePrinter(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}

	p := rc.printer
	p.mu.Lock()
	p.isStopped = false
	if p.processingJob == nil {
		p.state = PrinterIdle
	}
	p.mu.Unlock()
	p.wakeScheduler()

	rc.sys.scheduleSave()
	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handleIdentifyPrinter implements Identify-Printer, per §4.7's proxy
// contract: when the printer has registered output-devices it relays
// the request by queuing pendingIdentify/message on every device and
// raising identify-printer-requested, for a proxy to later drain via
// Acknowledge-Identify-Printer; otherwise it invokes the driver's
// Identify callback directly, outside the printer lock, per §5.
func handleIdentifyPrinter(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	p := rc.printer

	message, _ := firstString(*rc.req.Operation(), "message")
	actions := identifyActionsDefault(p.driverData)

	p.odMu.Lock()
	hasDevices := len(p.outputDevices) > 0
	if hasDevices {
		keywords := identifyActionKeywords(actions)
		for _, od := range p.outputDevices {
			od.pendingIdentify = keywords
			od.pendingIdentifyMsg = message
		}
	}
	p.odMu.Unlock()

	if hasDevices {
		p.mu.Lock()
		p.stateReasons |= PrinterReasonIdentifyPrinterRequested
		p.mu.Unlock()
		return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	}

	if rc.sys.callbacks.Identify == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotPossible)
	}
	if err := rc.sys.callbacks.Identify(rc.r.Context(), actions, message); err != nil {
		return errorResponse(rc.req, goipp.StatusErrorNotPossible)
	}

	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handleCreatePrinter implements Create-Printer (System service).
func handleCreatePrinter(rc *requestContext) *goipp.Message {
	op := rc.req.Operation()

	name, _ := firstString(*op, "printer-name")
	deviceURI, _ := firstString(*op, "smi55357-device-uri")
	driverName, _ := firstString(*op, "smi55357-driver")

	if name == "" || deviceURI == "" || driverName == "" {
		return errorResponse(rc.req, goipp.StatusErrorBadRequest)
	}

	p, err := rc.sys.CreatePrinter(rc.r.Context(), name, deviceURI, driverName)
	if err != nil {
		return errorResponse(rc.req, goipp.StatusErrorNotPossible)
	}

	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	p.copyAttributes(rc.r.Context(), rsp.Printer(), nil, rc.loopback, rc.tlsOK)
	return rsp
}

// handleDeletePrinter implements Delete-Printer.
func handleDeletePrinter(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}
	if err := rc.sys.DeletePrinter(rc.r.Context(), rc.printer.id); err != nil {
		return errorResponse(rc.req, goipp.StatusErrorNotPossible)
	}
	return goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
}

// handleGetPrinters implements Get-Printers (System service).
func handleGetPrinters(rc *requestContext) *goipp.Message {
	rsp := goipp.NewResponse(goipp.DefaultVersion, goipp.StatusOk, rc.req.RequestID)
	requested := requestedArray(rc.req)

	for _, p := range rc.sys.GetPrinters() {
		group := &goipp.AttributeGroup{Tag: goipp.TagPrinterGroup}
		p.copyAttributes(rc.r.Context(), &group.Attrs, requested, rc.loopback, rc.tlsOK)
		rsp.Groups = append(rsp.Groups, group)
	}

	return rsp
}

// handleSetPrinterAttributes implements Set-Printer-Attributes: a
// two-stage preflight-then-apply over the request's printer group,
// per §4.5's three-stage setAttributes protocol.
func handleSetPrinterAttributes(rc *requestContext) *goipp.Message {
	if rc.printer == nil {
		return errorResponse(rc.req, goipp.StatusErrorNotFound)
	}

	p := rc.printer
	req := *rc.req.Printer()

	rejected, err := p.setAttributes(req)
	if err != nil {
		return errorResponse(rc.req, goipp.StatusErrorAttributesOrValues)
	}

	status := goipp.StatusOk
	if len(rejected) > 0 {
		status = goipp.StatusErrorAttributesOrValues
	}

	rsp := goipp.NewResponse(goipp.DefaultVersion, status, rc.req.RequestID)
	if len(rejected) > 0 {
		addKeywords(rsp.Unsupported(), "attributes-not-settable", goipp.TagKeyword, rejected)
	}

	rc.sys.scheduleSave()
	return rsp
}

// identifyActionsDefault picks the identify action a driver declares
// support for, preferring display, falling back to sound, then flash.
func identifyActionsDefault(dd *abstract.DriverData) abstract.IdentifyActions {
	if dd == nil {
		return abstract.IdentifyDisplay
	}
	switch {
	case dd.IdentifyActionsSupported&abstract.IdentifyDisplay != 0:
		return abstract.IdentifyDisplay
	case dd.IdentifyActionsSupported&abstract.IdentifySound != 0:
		return abstract.IdentifySound
	case dd.IdentifyActionsSupported&abstract.IdentifyFlash != 0:
		return abstract.IdentifyFlash
	}
	return abstract.IdentifyDisplay
}

// identifyActionKeywords renders an IdentifyActions bitset as the IPP
// identify-actions keyword list, for queuing on an output-device.
func identifyActionKeywords(actions abstract.IdentifyActions) []string {
	var out []string
	if actions&abstract.IdentifyDisplay != 0 {
		out = append(out, "display")
	}
	if actions&abstract.IdentifyFlash != 0 {
		out = append(out, "flash")
	}
	if actions&abstract.IdentifySound != 0 {
		out = append(out, "sound")
	}
	return out
}
