// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// IPP request dispatch over HTTP

package papp

import (
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/OpenPrinting/go-papp/log"
	"github.com/OpenPrinting/goipp"
)

// Dispatcher is an http.Handler that decodes an IPP request, routes
// it by operation code and target URI, and encodes the response, per
// §4.6.
type Dispatcher struct {
	System *System
}

// NewDispatcher wraps sys as an http.Handler.
func NewDispatcher(sys *System) *Dispatcher {
	return &Dispatcher{System: sys}
}

// handlerFunc is the shape of a per-operation handler.
type handlerFunc func(ctx *requestContext) *goipp.Message

// requestContext bundles everything a handler needs: the decoded
// request, the resolved target printer (nil for System-level ops),
// and connection metadata used by URI-selection logic in §4.5.
type requestContext struct {
	req       *goipp.Message
	w         http.ResponseWriter
	r         *http.Request
	sys       *System
	printer   *Printer
	loopback  bool
	tlsOK     bool
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/ipp" {
		http.Error(w, "expected POST application/ipp", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		http.Error(w, "error reading body", http.StatusBadRequest)
		return
	}

	var msg goipp.Message
	if err := msg.DecodeBytes(body); err != nil {
		log.Warning(ctx, "dispatch: malformed IPP request: %s", err)
		d.writeError(w, 0, goipp.StatusErrorBadRequest)
		return
	}

	if status := checkFraming(&msg); status != goipp.StatusOk {
		log.Warning(ctx, "dispatch: rejecting request %d: %s", msg.RequestID, status)
		d.writeError(w, msg.RequestID, status)
		return
	}

	rc := &requestContext{
		req:      &msg,
		w:        w,
		r:        r,
		sys:      d.System,
		loopback: isLoopback(r.RemoteAddr),
		tlsOK:    r.TLS != nil,
	}

	path := uriPath(firstURIAttr(msg.Operation(), "printer-uri"))
	if path == "" {
		path = r.URL.Path
	}
	if p, ok := d.System.PrinterByResourcePath(path); ok {
		rc.printer = p
	}

	handler, ok := dispatchTable[msg.Code]
	var rsp *goipp.Message

	if !ok {
		if d.System.callbacks.Op != nil {
			if custom, handled := d.System.callbacks.Op(ctx, goipp.Op(msg.Code), &msg); handled {
				rsp = custom
			}
		}
		if rsp == nil {
			rsp = errorResponse(&msg, goipp.StatusErrorOperationNotSupported)
		}
	} else {
		rsp = handler(rc)
	}

	out, err := rsp.EncodeBytes()
	if err != nil {
		log.Error(ctx, "dispatch: encoding response: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/ipp")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// dispatchTable routes operation codes to handlers. Populated by
// handlers_*.go via init().
var dispatchTable = map[goipp.Code]handlerFunc{}

// isDiscoveryOp reports whether op is allowed to omit
// attributes-charset/attributes-natural-language/a target URI, per
// §4.6.
func isDiscoveryOp(code goipp.Code) bool {
	switch goipp.Op(code) {
	case goipp.OpCupsGetDefault, goipp.OpCupsGetPrinters:
		return true
	}
	return false
}

// checkFraming validates the §4.6 preamble ahead of routing: the
// version must fall in [1.x, 2.x], the request-id must be positive,
// attribute groups must appear in non-decreasing tag order, and
// (unless op is a discovery op) the operation group must open with
// attributes-charset then attributes-natural-language, the charset
// must be us-ascii or utf-8, and a target URI must be present. Returns
// StatusOk when the request may proceed to dispatch.
func checkFraming(msg *goipp.Message) goipp.Status {
	if major := msg.Version.Major(); major != 1 && major != 2 {
		return goipp.StatusErrorVersionNotSupported
	}

	if msg.RequestID == 0 {
		return goipp.StatusErrorBadRequest
	}

	last := goipp.Tag(0)
	for _, grp := range msg.Groups {
		if grp.Tag < last {
			return goipp.StatusErrorBadRequest
		}
		last = grp.Tag
	}

	if isDiscoveryOp(msg.Code) {
		return goipp.StatusOk
	}

	op := *msg.Operation()
	if len(op) < 2 || op[0].Name != "attributes-charset" || op[1].Name != "attributes-natural-language" {
		return goipp.StatusErrorBadRequest
	}

	charset, _ := firstString(op, "attributes-charset")
	if charset != "us-ascii" && charset != "utf-8" {
		return goipp.StatusErrorBadRequest
	}

	hasTarget := false
	for _, name := range [...]string{"system-uri", "printer-uri", "job-uri"} {
		if _, ok := firstString(op, name); ok {
			hasTarget = true
			break
		}
	}
	if !hasTarget {
		return goipp.StatusErrorBadRequest
	}

	return goipp.StatusOk
}

// errorResponse builds a minimal error response echoing req's
// request-id, per §4.6.
func errorResponse(req *goipp.Message, status goipp.Status) *goipp.Message {
	rsp := goipp.NewResponse(goipp.DefaultVersion, status, req.RequestID)
	return rsp
}

// writeError sends a bare status-only IPP response.
func (d *Dispatcher) writeError(w http.ResponseWriter, requestID uint32, status goipp.Status) {
	rsp := goipp.NewResponse(goipp.DefaultVersion, status, requestID)
	out, _ := rsp.EncodeBytes()
	w.Header().Set("Content-Type", "application/ipp")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// isLoopback reports whether a RemoteAddr (host:port) is loopback,
// used by the client-loopback URI-selection policy of §4.5.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// firstURIAttr returns the first string value of name in attrs.
func firstURIAttr(attrs *goipp.Attributes, name string) string {
	s, _ := firstString(*attrs, name)
	return s
}

// uriPath extracts the path component from an ipp(s):// URI.
func uriPath(uri string) string {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return uri
	}
	rest := uri[idx+3:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return ""
	}
	return rest[slash:]
}
