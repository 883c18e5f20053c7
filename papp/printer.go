// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Printer: a queue owned by the System

package papp

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OpenPrinting/go-papp/abstract"
	"github.com/OpenPrinting/go-papp/log"
	"github.com/OpenPrinting/goipp"
)

// outputDevice is one registered proxy endpoint for a Printer in the
// Proxy / output-device scenario (§4.7, Update-Active-Jobs /
// Update-Output-Device-Attributes).
type outputDevice struct {
	uuid              string
	attrs             goipp.Attributes
	pendingIdentify   []string
	pendingIdentifyMsg string
}

// Printer is a print queue: driver data, static and live attrs,
// three job arrays, raw listeners, and the per-printer scheduler.
type Printer struct {
	mu sync.RWMutex

	system *System // logical back-reference

	id         int
	name       string
	uuid       string
	dnsSDName  string
	deviceID   string
	deviceURI  string
	driverName string
	driverData *abstract.DriverData

	attrs       goipp.Attributes
	driverAttrs goipp.Attributes

	mediaReady   []MediaCol
	mediaDefault MediaCol

	markerLevels []int

	allJobs       []*Job
	activeJobs    []*Job
	completedJobs []*Job

	nextJobID        int
	maxActiveJobs    int
	maxCompletedJobs int

	state        PrinterState
	stateReasons PrinterStateReason
	stateTime    time.Time
	configTime   time.Time
	statusTime   time.Time

	isAccepting  bool
	isStopped    bool
	holdNewJobs  bool
	isDeleted    bool
	processingJob *Job
	deviceInUse  bool

	rawListeners []net.Listener
	rawActive    bool

	odMu          sync.RWMutex
	outputDevices []*outputDevice

	wake chan struct{}
	stop chan struct{}

	spoolDir string
}

// resourcePath returns the printer's HTTP resource path, as used in
// job-printer-uri and friends.
func (p *Printer) resourcePath() string {
	if p.system != nil && p.system.singleton {
		return "/ipp/print"
	}
	return "/ipp/print/" + p.name
}

// newPrinter constructs a Printer and computes its static attrs. It
// does not register the printer with the System; callers do that
// under the System write lock.
func newPrinter(sys *System, id int, name, deviceURI, driverName string,
	dd *abstract.DriverData, spoolDir string) *Printer {

	now := time.Now()

	p := &Printer{
		system:           sys,
		id:               id,
		name:             name,
		uuid:             fmt.Sprintf("urn:uuid:printer-%d", id),
		deviceURI:        deviceURI,
		driverName:       driverName,
		driverData:       dd,
		nextJobID:        0,
		maxActiveJobs:    1,
		maxCompletedJobs: 100,
		state:            PrinterIdle,
		stateTime:        now,
		configTime:       now,
		statusTime:       now,
		isAccepting:      true,
		wake:             make(chan struct{}, 1),
		stop:             make(chan struct{}),
		spoolDir:         spoolDir,
	}

	if dd != nil && len(dd.Media) > 0 {
		p.mediaReady = []MediaCol{{SizeName: dd.MediaDefault}}
		p.mediaDefault = p.mediaReady[0]
	}
	if dd != nil {
		p.markerLevels = make([]int, dd.NumSupply)
		for i := range p.markerLevels {
			p.markerLevels[i] = 100
		}
	}

	p.computeStaticAttrs()

	return p
}

// computeStaticAttrs rebuilds p.attrs/p.driverAttrs from the driver
// data. Called at creation and after setAttributes commits a change
// that affects capability-derived values.
func (p *Printer) computeStaticAttrs() {
	var attrs goipp.Attributes
	dd := p.driverData

	addKeyword(&attrs, "printer-name", goipp.TagName, p.name)
	addKeyword(&attrs, "printer-uuid", goipp.TagURI, p.uuid)
	addInteger(&attrs, "printer-id", goipp.TagInteger, p.id)

	if dd != nil {
		addKeyword(&attrs, "printer-make-and-model", goipp.TagText, dd.MakeModel)
		addKeywords(&attrs, "document-format-supported", goipp.TagMimeType, dd.Formats)
		addKeyword(&attrs, "document-format-default", goipp.TagMimeType, dd.Format)
		addKeywords(&attrs, "print-color-mode-supported", goipp.TagKeyword, dd.ColorModes)
		addKeyword(&attrs, "print-color-mode-default", goipp.TagKeyword, dd.ColorModeDefault)
		addKeywords(&attrs, "sides-supported", goipp.TagKeyword, dd.Sides)
		addKeyword(&attrs, "sides-default", goipp.TagKeyword, dd.SideDefault)
		addIntegers(&attrs, "print-quality-supported", goipp.TagEnum, dd.Qualities)
		addInteger(&attrs, "print-quality-default", goipp.TagEnum, dd.QualityDefault)
		addKeywords(&attrs, "media-supported", goipp.TagKeyword, dd.Media)
		addKeyword(&attrs, "media-default", goipp.TagKeyword, dd.MediaDefault)
		addBoolean(&attrs, "page-ranges-supported", dd.PageRangesSupported)
	}

	p.attrs = attrs
}

// copyAttributes assembles a Get-Printer-Attributes response group,
// per §4.5. clientLoopback/tlsAllowed decide which of http/https
// URI variants to emit.
func (p *Printer) copyAttributes(ctx context.Context, dst *goipp.Attributes,
	requested map[string]bool, clientLoopback, tlsAllowed bool) {

	p.mu.RLock()
	defer p.mu.RUnlock()

	want := func(name string) bool { return requested == nil || requested[name] }

	copyAttributes(dst, p.attrs, requested)
	copyAttributes(dst, p.driverAttrs, requested)

	dd := p.driverData

	if want("copies-supported") {
		if dd != nil && isStreamFormat(dd.Format) {
			addRange(dst, "copies-supported", 1, 1)
		} else {
			addRange(dst, "copies-supported", 1, 999)
		}
	}

	if want("identify-actions-default") {
		actions := "none"
		if dd != nil && dd.IdentifyActionsSupported&abstract.IdentifyDisplay != 0 {
			actions = "display"
		}
		addKeyword(dst, "identify-actions-default", goipp.TagKeyword, actions)
	}

	if want("job-spooling-supported") {
		mode := "spool"
		if p.maxActiveJobs == 1 || (dd != nil && isStreamFormat(dd.Format)) {
			mode = "stream"
		}
		addKeyword(dst, "job-spooling-supported", goipp.TagKeyword, mode)
	}

	if dd != nil && dd.NumSupply > 0 {
		p.copySupplyAttrs(dst, want, dd)
	}

	if want("media-ready") || want("media-col-ready") {
		p.copyMediaReadyAttrs(dst, want, dd)
	}

	if want("printer-input-tray") {
		p.copyInputTrayAttrs(dst, dd)
	}

	p.copyURIAttrs(dst, want, clientLoopback, tlsAllowed)

	if want("uri-authentication-supported") {
		auth := "none"
		if p.system != nil && p.system.authService != nil {
			auth = "basic"
		}
		addKeyword(dst, "uri-authentication-supported", goipp.TagKeyword, auth)
	}

	if clientLoopback && p.system != nil && p.system.callbacks.WifiStatus != nil {
		if status, err := p.system.callbacks.WifiStatus(ctx); err == nil {
			addBoolean(dst, "printer-wifi-configured", status.Configured)
			if status.SSID != "" {
				addKeyword(dst, "printer-wifi-ssid", goipp.TagKeyword, status.SSID)
			}
		}
	}

	if want("printer-state") {
		addInteger(dst, "printer-state", goipp.TagEnum, int(p.state))
	}
	if want("printer-state-reasons") {
		addKeywords(dst, "printer-state-reasons", goipp.TagKeyword, p.liveStateReasons())
	}
}

// isStreamFormat reports whether format is a streaming raster format
// that only ever supports one copy per job.
func isStreamFormat(format string) bool {
	return format == "image/pwg-raster" || format == "image/urf"
}

func (p *Printer) copySupplyAttrs(dst *goipp.Attributes, want func(string) bool, dd *abstract.DriverData) {
	if want("marker-colors") {
		addKeywords(dst, "marker-colors", goipp.TagKeyword, dd.SupplyColors)
	}
	if want("marker-names") {
		addKeywords(dst, "marker-names", goipp.TagText, dd.SupplyNames)
	}
	if want("marker-types") {
		addKeywords(dst, "marker-types", goipp.TagKeyword, dd.SupplyTypes)
	}
	if want("marker-levels") {
		addIntegers(dst, "marker-levels", goipp.TagInteger, p.markerLevels)
	}

	highs := make([]int, len(p.markerLevels))
	lows := make([]int, len(p.markerLevels))
	for i, typ := range dd.SupplyTypes {
		if isConsumableSupplyType(typ) {
			highs[i], lows[i] = 90, 10
		} else {
			highs[i], lows[i] = 100, 0
		}
	}
	if want("marker-high-levels") {
		addIntegers(dst, "marker-high-levels", goipp.TagInteger, highs)
	}
	if want("marker-low-levels") {
		addIntegers(dst, "marker-low-levels", goipp.TagInteger, lows)
	}

	if want("printer-supply") || want("printer-supply-description") {
		for i := 0; i < dd.NumSupply; i++ {
			if want("printer-supply") {
				level := 100
				if i < len(p.markerLevels) {
					level = p.markerLevels[i]
				}
				addKeyword(dst, "printer-supply", goipp.TagString,
					fmt.Sprintf("index=%d;class=supplyThatIsConsumed;level=%d;", i+1, level))
			}
			if want("printer-supply-description") && i < len(dd.SupplyNames) {
				addKeyword(dst, "printer-supply-description", goipp.TagText, dd.SupplyNames[i])
			}
		}
	}
}

// copyMediaReadyAttrs emits media-ready and media-col-ready, cloning
// each ready slot into a borderless variant when the driver supports
// borderless printing, per §4.5.
func (p *Printer) copyMediaReadyAttrs(dst *goipp.Attributes, want func(string) bool, dd *abstract.DriverData) {
	for _, mc := range p.mediaReady {
		if want("media-ready") {
			addKeyword(dst, "media-ready", goipp.TagKeyword, mc.SizeName)
		}
		if want("media-col-ready") {
			dst.Add(goipp.Attribute{
				Name: "media-col-ready",
				Values: goipp.Values{
					{T: goipp.TagBeginCollection, V: exportMediaCol(mc)},
				},
			})
		}

		if dd != nil && dd.Borderless {
			borderless := mc
			borderless.SizeName += "-borderless"
			borderless.Bottom, borderless.Top, borderless.Left, borderless.Right = 0, 0, 0, 0

			if want("media-ready") {
				addKeyword(dst, "media-ready", goipp.TagKeyword, borderless.SizeName)
			}
			if want("media-col-ready") {
				dst.Add(goipp.Attribute{
					Name: "media-col-ready",
					Values: goipp.Values{
						{T: goipp.TagBeginCollection, V: exportMediaCol(borderless)},
					},
				})
			}
		}
	}
}

// copyInputTrayAttrs emits printer-input-tray: one octet-string
// descriptor per configured source, plus a synthetic "auto" tray.
func (p *Printer) copyInputTrayAttrs(dst *goipp.Attributes, dd *abstract.DriverData) {
	if dd == nil {
		return
	}
	for _, src := range dd.Sources {
		addKeyword(dst, "printer-input-tray", goipp.TagString,
			fmt.Sprintf("type=sheetFeedAutoRemovableTray;mediafeed=0;mediaxfeed=0;maxcapacity=-2;level=-2;status=0;name=%s;", src))
	}
	addKeyword(dst, "printer-input-tray", goipp.TagString,
		"type=sheetFeedAutoRemovableTray;mediafeed=0;mediaxfeed=0;maxcapacity=-2;level=-2;status=0;name=auto;")
}

// copyURIAttrs emits the URI family of attributes, choosing
// http/ipp and/or https/ipps per the loopback/TLS policy in §4.5.
func (p *Printer) copyURIAttrs(dst *goipp.Attributes, want func(string) bool,
	clientLoopback, tlsAllowed bool) {

	host := "localhost"
	if p.system != nil && p.system.hostname != "" {
		host = p.system.hostname
	}

	var uris []string
	addInsecure := clientLoopback || !tlsAllowed
	addSecure := !clientLoopback && tlsAllowed

	if addInsecure {
		uris = append(uris, fmt.Sprintf("ipp://%s:%d%s", host, p.system.ippPort, p.resourcePath()))
	}
	if addSecure {
		uris = append(uris, fmt.Sprintf("ipps://%s:%d%s", host, p.system.ippsPort, p.resourcePath()))
	}

	if want("printer-uri-supported") {
		addKeywords(dst, "printer-uri-supported", goipp.TagURI, uris)
	}
	if want("printer-xri-supported") {
		for _, u := range uris {
			var col goipp.Attributes
			addKeyword(&col, "xri-uri", goipp.TagURI, u)
			scheme := "ipp"
			if strings.HasPrefix(u, "ipps") {
				scheme = "ipps"
			}
			auth := "none"
			if p.system != nil && p.system.authService != nil {
				auth = "basic"
			}
			addKeyword(&col, "xri-security", goipp.TagKeyword,
				map[bool]string{true: "tls", false: "none"}[scheme == "ipps"])
			addKeyword(&col, "xri-authentication", goipp.TagKeyword, auth)
			dst.Add(goipp.Attribute{
				Name:   "printer-xri-supported",
				Values: goipp.Values{{T: goipp.TagBeginCollection, V: goipp.Collection(col)}},
			})
		}
	}
	if want("printer-more-info") && len(uris) > 0 {
		addKeyword(dst, "printer-more-info", goipp.TagURI, uris[0])
	}
	if want("printer-supply-info-uri") && len(uris) > 0 {
		addKeyword(dst, "printer-supply-info-uri", goipp.TagURI, uris[0])
	}
	if want("printer-icons") && len(uris) > 0 {
		addKeywords(dst, "printer-icons", goipp.TagURI,
			[]string{uris[0] + "/icon-sm.png", uris[0] + "/icon-md.png", uris[0] + "/icon-lg.png"})
	}

	if want("printer-strings-uri") && p.system != nil {
		if res, ok := p.system.resourceForLanguage(""); ok {
			addKeyword(dst, "printer-strings-uri", goipp.TagURI, res)
		}
	}
}

// liveStateReasons assembles printer-state-reasons from the static
// bitset plus the synthetic reasons of §4.5. Caller must hold p.mu
// for reading (already the case from copyAttributes).
func (p *Printer) liveStateReasons() []string {
	reasons := p.stateReasons.Keywords()

	if p.isStopped {
		reasons = append(reasons, "paused")
	} else if p.state == PrinterStopped {
		reasons = append(reasons, "moving-to-paused")
	}
	if p.holdNewJobs {
		reasons = append(reasons, "hold-new-jobs")
	}
	if p.driverData != nil && p.system != nil && p.system.callbacks.WifiStatus != nil {
		if status, err := p.system.callbacks.WifiStatus(context.Background()); err == nil && !status.Configured {
			reasons = append(reasons, "wifi-not-configured-report")
		}
	}

	if len(reasons) == 0 {
		return []string{"none"}
	}

	sort.Strings(reasons)
	return reasons
}

// wakeScheduler nudges the scheduler loop without blocking.
func (p *Printer) wakeScheduler() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// moveToCompletedLocked removes j from activeJobs and appends it to
// completedJobs, trimming to maxCompletedJobs. Caller must hold p.mu.
func (p *Printer) moveToCompletedLocked(j *Job) {
	for i, job := range p.activeJobs {
		if job == j {
			p.activeJobs = append(p.activeJobs[:i], p.activeJobs[i+1:]...)
			break
		}
	}
	p.completedJobs = append(p.completedJobs, j)

	if p.maxCompletedJobs > 0 && len(p.completedJobs) > p.maxCompletedJobs {
		drop := len(p.completedJobs) - p.maxCompletedJobs
		p.completedJobs = p.completedJobs[drop:]
	}
}

// settableAttrs names the printer attributes Set-Printer-Attributes
// may modify directly, per §4.5's setAttributes contract. Names not
// in this table are accepted only when they match the vendor-default
// shape (vendorDefaultName) and are then merged into driverAttrs.
var settableAttrs = map[string]bool{
	"printer-location":      true,
	"printer-geo-location":  true,
	"printer-organization":  true,
	"printer-organizational-unit": true,
	"printer-dns-sd-name":   true,
	"media-col-default":     true,
	"media-default":         true,
	"print-color-mode-default": true,
	"print-quality-default": true,
	"sides-default":         true,
	"output-bin-default":    true,
}

// setAttributes implements §4.5's three-stage protocol: preflight
// every requested name against settableAttrs (or the vendor-default
// pattern), apply the accepted ones, then commit by bumping
// configTime. Rejected names are returned for the caller to report
// in attributes-not-settable.
//
// Resolves Open Question (a): printer-geo-location's apply branch
// validates the geo:lat,lon format and bounds before storing, rather
// than letting a malformed location reach a client unexamined.
//
// Resolves Open Question (b): output-bin-default is listed exactly
// once in settableAttrs; the generic apply loop naturally visits each
// requested attribute once, so no duplicate branch is possible.
func (p *Printer) setAttributes(req goipp.Attributes) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rejected []string

	for _, attr := range req {
		if !settableAttrs[attr.Name] && !vendorDefaultName(attr.Name) {
			rejected = append(rejected, attr.Name)
			continue
		}

		switch attr.Name {
		case "media-default":
			name, _ := firstString(goipp.Attributes{attr}, "media-default")
			if p.driverData != nil && len(p.driverData.Media) > 0 && !stringInSlice(p.driverData.Media, name) {
				rejected = append(rejected, attr.Name)
				continue
			}
			p.mediaDefault.SizeName = name
		case "media-col-default":
			if len(attr.Values) > 0 {
				if col, ok := attr.Values[0].V.(goipp.Collection); ok {
					p.mediaDefault = importMediaCol(col)
				}
			}
		case "print-quality-default":
			v, _ := firstInteger(goipp.Attributes{attr}, "print-quality-default")
			if p.driverData != nil && !intInSlice(p.driverData.Qualities, v) {
				rejected = append(rejected, attr.Name)
				continue
			}
			p.setDriverAttrLocked(attr)
		case "sides-default":
			v, _ := firstString(goipp.Attributes{attr}, "sides-default")
			if p.driverData != nil && !stringInSlice(p.driverData.Sides, v) {
				rejected = append(rejected, attr.Name)
				continue
			}
			p.setDriverAttrLocked(attr)
		case "print-color-mode-default":
			v, _ := firstString(goipp.Attributes{attr}, "print-color-mode-default")
			if p.driverData != nil && !stringInSlice(p.driverData.ColorModes, v) {
				rejected = append(rejected, attr.Name)
				continue
			}
			p.setDriverAttrLocked(attr)
		case "printer-geo-location":
			v, _ := firstString(goipp.Attributes{attr}, "printer-geo-location")
			if !validGeoLocation(v) {
				rejected = append(rejected, attr.Name)
				continue
			}
			p.setDriverAttrLocked(attr)
		default:
			p.setDriverAttrLocked(attr)
		}
	}

	p.configTime = time.Now()
	p.computeStaticAttrs()

	return rejected, nil
}

// setDriverAttrLocked replaces any existing driverAttrs entry with
// attr's name, or appends it if none exists. Caller must hold p.mu.
func (p *Printer) setDriverAttrLocked(attr goipp.Attribute) {
	for i, a := range p.driverAttrs {
		if a.Name == attr.Name {
			p.driverAttrs[i] = attr
			return
		}
	}
	p.driverAttrs = append(p.driverAttrs, attr)
}

// wasteSupplyTypes lists the marker-types keywords for receptacles
// that fill up rather than deplete, so they carry no low-level warning
// threshold.
var wasteSupplyTypes = map[string]bool{
	"wastetoner":      true,
	"wasteink":        true,
	"wastecap":        true,
	"wastereceptacle": true,
}

// isConsumableSupplyType reports whether typ (an IPP marker-types
// keyword such as "toner" or "ink") is a depleting consumable, which
// per §4.5 gets the 90/10 high/low marker-level thresholds rather than
// the 100/0 used for non-warning supplies like waste receptacles.
func isConsumableSupplyType(typ string) bool {
	return !wasteSupplyTypes[strings.ToLower(typ)]
}

// validGeoLocation reports whether v is a well-formed "geo:lat,lon"
// URI with -90<=lat<=90 and -180<=lon<=180, per §4.5's
// printer-geo-location validation.
func validGeoLocation(v string) bool {
	rest, ok := strings.CutPrefix(v, "geo:")
	if !ok {
		return false
	}
	parts := strings.Split(rest, ",")
	if len(parts) != 2 {
		return false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lon < -180 || lon > 180 {
		return false
	}
	return true
}

// setReadyMedia validates and stores the printer's ready-media list.
func (p *Printer) setReadyMedia(media []MediaCol) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.driverData != nil && len(p.driverData.Media) > 0 {
		for _, mc := range media {
			if !stringInSlice(p.driverData.Media, mc.SizeName) {
				return fmt.Errorf("unsupported media %q", mc.SizeName)
			}
		}
	}

	p.mediaReady = media
	p.configTime = time.Now()
	return nil
}

// runScheduler is the per-printer scheduler loop of §4.5. It runs in
// its own goroutine for the life of the Printer.
func (p *Printer) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-p.wake:
		case <-ticker.C:
		}

		for {
			job := p.pickNextJob()
			if job == nil {
				break
			}
			p.runJob(ctx, job)
		}
	}
}

// pickNextJob selects the oldest PENDING job, transitions it to
// PROCESSING, and returns it; nil if nothing is runnable right now.
func (p *Printer) pickNextJob() *Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isStopped || p.processingJob != nil {
		return nil
	}

	var pick *Job
	for _, j := range p.activeJobs {
		j.mu.RLock()
		isPending := j.state == JobPending
		j.mu.RUnlock()
		if isPending && (pick == nil || j.id < pick.id) {
			pick = j
		}
	}
	if pick == nil {
		return nil
	}

	pick.mu.Lock()
	pick.state = JobProcessing
	pick.startedAt = time.Now()
	pick.stateTime = pick.startedAt
	pick.mu.Unlock()

	p.processingJob = pick
	p.state = PrinterProcessing
	p.statusTime = time.Now()

	return pick
}

// runJob drives the driver's Render callback for job and records the
// outcome, per §4.5 steps 3-4.
func (p *Printer) runJob(ctx context.Context, job *Job) {
	rec := log.Begin(ctx)
	rec.Info("printer %s: job %d starting", p.name, job.id)

	var renderErr error
	if p.system != nil && p.system.callbacks.Render != nil {
		renderErr = p.system.callbacks.Render(ctx, job, job.spoolPath)
	}

	final := JobCompleted
	switch {
	case job.Canceled():
		final = JobCanceled
	case renderErr != nil:
		final = JobAborted
		rec.Error("printer %s: job %d failed: %s", p.name, job.id, renderErr)
	default:
		rec.Info("printer %s: job %d completed", p.name, job.id)
	}
	rec.Commit()

	job.setState(p, final)
	if final != JobCompleted {
		job.removeSpoolFile()
	} else {
		job.removeSpoolFile()
	}

	p.mu.Lock()
	if p.processingJob == job {
		p.processingJob = nil
	}
	p.state = PrinterIdle
	p.statusTime = time.Now()
	deleted := p.isDeleted && p.processingJob == nil
	p.mu.Unlock()

	if deleted && p.system != nil {
		p.system.finishDeferredDelete(p)
	}
}

// addRawListeners binds IPv4 and IPv6 raw-ingest sockets on
// RawBasePort+printer_id, per §4.5/§6.
func (p *Printer) addRawListeners(ctx context.Context) {
	port := RawBasePort + p.id

	for _, network := range []string{"tcp4", "tcp6"} {
		ln, err := net.Listen(network, fmt.Sprintf(":%d", port))
		if err != nil {
			log.Info(ctx, "printer %s: raw listener %s:%d not available: %s", p.name, network, port, err)
			continue
		}
		log.Info(ctx, "printer %s: raw listener on %s:%d", p.name, network, port)
		p.rawListeners = append(p.rawListeners, ln)
	}
	p.rawActive = len(p.rawListeners) > 0
}

// runRaw accepts and serves one raw-ingest listener, per §4.5/§6/§5.
func (p *Printer) runRaw(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}

		p.mu.RLock()
		saturated := p.maxActiveJobs > 0 && len(p.activeJobs) >= p.maxActiveJobs
		p.mu.RUnlock()
		if saturated {
			time.Sleep(100 * time.Millisecond)
			conn.Close()
			continue
		}

		go p.serveRawConn(ctx, conn)
	}
}

// serveRawConn drains one raw connection into a spool file and, on a
// clean close, submits it as a new job in the printer's default
// format.
func (p *Printer) serveRawConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	format := "application/octet-stream"
	if p.driverData != nil {
		format = p.driverData.Format
	}

	p.mu.Lock()
	job, err := createJob(p, 0, "guest", "raw", nil)
	if err == nil {
		// Hold the job until the connection is drained, so the
		// scheduler can't pick it up mid-transfer.
		job.mu.Lock()
		job.state = JobHeld
		job.mu.Unlock()
	}
	p.mu.Unlock()
	if err != nil {
		log.Warning(ctx, "printer %s: raw ingest rejected: %s", p.name, err)
		return
	}

	f, err := job.openSpoolFile(p.spoolDir, format, "w")
	if err != nil {
		job.setState(p, JobAborted)
		return
	}

	n, err := copyWithIdleTimeout(f, conn)
	f.Close()

	if err != nil {
		log.Warning(ctx, "printer %s: raw ingest job %d: %s", p.name, job.id, err)
		job.setState(p, JobAborted)
		job.removeSpoolFile()
		return
	}

	log.Info(ctx, "printer %s: raw ingest job %d received %d bytes", p.name, job.id, n)
	job.submitFile(job.spoolPath, format, nil, true)
}
