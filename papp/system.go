// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// System: the top-level container of Printers

package papp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/OpenPrinting/go-papp/abstract"
	"github.com/OpenPrinting/go-papp/log"
)

// authService is a placeholder seam for HTTP basic/digest
// authentication; nil means the system accepts unauthenticated
// clients, per §4.6.
type authService interface {
	Authenticate(username, password string) bool
}

// Snapshot is the JSON-serialisable persisted state of a System,
// written through SaveCallback whenever configuration changes, per
// the configuration & persistence hook in the ambient stack.
type Snapshot struct {
	Printers []PrinterSnapshot `json:"printers"`
}

// PrinterSnapshot captures one printer's durable configuration: not
// its live job queue, which is re-created empty on restart.
type PrinterSnapshot struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	DeviceURI  string     `json:"device_uri"`
	DriverName string     `json:"driver_name"`
	MediaReady []MediaCol `json:"media_ready"`
	IsStopped  bool       `json:"is_stopped"`
}

// System is the top-level container: registry of Printers, resources
// and drivers, plus the callbacks an embedder supplies to specialise
// core behavior.
type System struct {
	mu sync.RWMutex

	name       string
	hostname   string
	ippPort    int
	ippsPort   int
	singleton  bool // true when the deployment exposes exactly one Printer at "/ipp/print"
	spoolDir   string

	authService authService
	callbacks   abstract.Callbacks
	drivers     []abstract.Driver

	printers   []*Printer
	nextPrintID int

	resources map[string]string // language tag -> strings-file URI

	saveCallback func(Snapshot)
	saveTimer    *time.Timer
	saveDelay    time.Duration

	deleting map[int]bool // printers pending deferred deletion
}

// SystemConfig configures a new System.
type SystemConfig struct {
	Name      string
	Hostname  string
	IPPPort   int
	IPPSPort  int
	Singleton bool
	SpoolDir  string
	Callbacks abstract.Callbacks
	Drivers   []abstract.Driver
	Auth      authService

	// SaveCallback, if set, is invoked at most once per SaveDelay
	// (default one second) with the system's current Snapshot.
	SaveCallback func(Snapshot)
	SaveDelay    time.Duration
}

// NewSystem constructs a System from cfg. It starts no goroutines;
// each printer's scheduler and raw listeners are started by
// CreatePrinter.
func NewSystem(cfg SystemConfig) (*System, error) {
	if cfg.Callbacks.Driver == nil {
		return nil, fmt.Errorf("papp: SystemConfig.Callbacks.Driver is required")
	}

	spoolDir := cfg.SpoolDir
	if spoolDir == "" {
		spoolDir = filepath.Join(os.TempDir(), "papp-spool")
	}
	if err := os.MkdirAll(spoolDir, 0700); err != nil {
		return nil, fmt.Errorf("papp: spool directory: %w", err)
	}

	delay := cfg.SaveDelay
	if delay == 0 {
		delay = time.Second
	}

	sys := &System{
		name:         cfg.Name,
		hostname:     cfg.Hostname,
		ippPort:      cfg.IPPPort,
		ippsPort:     cfg.IPPSPort,
		singleton:    cfg.Singleton,
		spoolDir:     spoolDir,
		authService:  cfg.Auth,
		callbacks:    cfg.Callbacks,
		drivers:      cfg.Drivers,
		resources:    map[string]string{},
		saveCallback: cfg.SaveCallback,
		saveDelay:    delay,
		deleting:     map[int]bool{},
	}

	return sys, nil
}

// resourceForLanguage returns the strings-file URI registered for
// lang, or the default resource if lang is unregistered or empty.
func (sys *System) resourceForLanguage(lang string) (string, bool) {
	sys.mu.RLock()
	defer sys.mu.RUnlock()

	if uri, ok := sys.resources[lang]; ok {
		return uri, true
	}
	uri, ok := sys.resources[""]
	return uri, ok
}

// driverByName looks up a registered Driver by its keyword.
func (sys *System) driverByName(name string) (abstract.Driver, bool) {
	for _, d := range sys.drivers {
		if d.Name == name {
			return d, true
		}
	}
	return abstract.Driver{}, false
}

// CreatePrinter implements Create-Printer: resolves driverName
// through the driver registry (falling back to Callbacks.Driver),
// allocates a Printer, and starts its scheduler and raw listeners.
func (sys *System) CreatePrinter(ctx context.Context, name, deviceURI, driverName string) (*Printer, error) {
	sys.mu.Lock()

	for _, p := range sys.printers {
		if p.name == name {
			sys.mu.Unlock()
			return nil, fmt.Errorf("printer %q already exists", name)
		}
	}

	var dd *abstract.DriverData
	var err error
	if drv, ok := sys.driverByName(driverName); ok && drv.Create != nil {
		dd, err = drv.Create(ctx, deviceURI)
	} else {
		dd, err = sys.callbacks.Driver(ctx, driverName, deviceURI)
	}
	if err != nil {
		sys.mu.Unlock()
		return nil, fmt.Errorf("driver %q: %w", driverName, err)
	}

	sys.nextPrintID++
	id := sys.nextPrintID

	p := newPrinter(sys, id, name, deviceURI, driverName, dd, sys.spoolDir)
	sys.printers = append(sys.printers, p)
	sort.Slice(sys.printers, func(i, j int) bool { return sys.printers[i].name < sys.printers[j].name })

	sys.mu.Unlock()

	go p.runScheduler(ctx)
	p.addRawListeners(ctx)
	for _, ln := range p.rawListeners {
		go p.runRaw(ctx, ln)
	}

	log.Info(ctx, "system: created printer %q (id %d, driver %q)", name, id, driverName)
	sys.scheduleSave()

	return p, nil
}

// DeletePrinter implements Delete-Printer. If the printer is mid-job,
// deletion is deferred until the job finishes (finishDeferredDelete).
func (sys *System) DeletePrinter(ctx context.Context, id int) error {
	sys.mu.Lock()

	var p *Printer
	idx := -1
	for i, pr := range sys.printers {
		if pr.id == id {
			p, idx = pr, i
			break
		}
	}
	if p == nil {
		sys.mu.Unlock()
		return fmt.Errorf("no such printer: %d", id)
	}

	p.mu.Lock()
	busy := p.processingJob != nil
	p.isDeleted = true
	p.mu.Unlock()

	if busy {
		sys.deleting[id] = true
		sys.mu.Unlock()
		log.Info(ctx, "system: printer %d deletion deferred until current job finishes", id)
		return nil
	}

	sys.printers = append(sys.printers[:idx], sys.printers[idx+1:]...)
	sys.mu.Unlock()

	sys.teardownPrinter(p)
	log.Info(ctx, "system: deleted printer %d", id)
	sys.scheduleSave()

	return nil
}

// finishDeferredDelete completes a Delete-Printer that was deferred
// because the printer was processing a job when requested.
func (sys *System) finishDeferredDelete(p *Printer) {
	sys.mu.Lock()
	if !sys.deleting[p.id] {
		sys.mu.Unlock()
		return
	}
	delete(sys.deleting, p.id)

	for i, pr := range sys.printers {
		if pr == p {
			sys.printers = append(sys.printers[:i], sys.printers[i+1:]...)
			break
		}
	}
	sys.mu.Unlock()

	sys.teardownPrinter(p)
	sys.scheduleSave()
}

// teardownPrinter stops a printer's scheduler loop and raw listeners.
func (sys *System) teardownPrinter(p *Printer) {
	close(p.stop)
	for _, ln := range p.rawListeners {
		ln.Close()
	}
}

// GetPrinters returns a snapshot slice of the system's printers,
// ordered by id.
func (sys *System) GetPrinters() []*Printer {
	sys.mu.RLock()
	defer sys.mu.RUnlock()

	out := append([]*Printer{}, sys.printers...)
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// PrinterByID looks up a printer by id.
func (sys *System) PrinterByID(id int) (*Printer, bool) {
	sys.mu.RLock()
	defer sys.mu.RUnlock()

	for _, p := range sys.printers {
		if p.id == id {
			return p, true
		}
	}
	return nil, false
}

// PrinterByResourcePath looks up a printer by its HTTP resource path.
func (sys *System) PrinterByResourcePath(path string) (*Printer, bool) {
	sys.mu.RLock()
	defer sys.mu.RUnlock()

	for _, p := range sys.printers {
		if p.resourcePath() == path {
			return p, true
		}
	}
	return nil, false
}

// SetAllPrintersPaused pauses or resumes every printer, used by the
// system-level Pause-All-Printers / Resume-All-Printers operations.
func (sys *System) SetAllPrintersPaused(paused bool) {
	sys.mu.RLock()
	printers := append([]*Printer{}, sys.printers...)
	sys.mu.RUnlock()

	for _, p := range printers {
		p.mu.Lock()
		p.isStopped = paused
		if paused {
			p.state = PrinterStopped
		} else if p.processingJob == nil {
			p.state = PrinterIdle
		}
		p.statusTime = time.Now()
		p.mu.Unlock()
		if !paused {
			p.wakeScheduler()
		}
	}

	sys.scheduleSave()
}

// scheduleSave debounces SaveCallback invocations by saveDelay, per
// the persistence hook in the ambient stack: rapid successive
// configuration changes collapse into one write.
func (sys *System) scheduleSave() {
	if sys.saveCallback == nil {
		return
	}

	sys.mu.Lock()
	defer sys.mu.Unlock()

	if sys.saveTimer != nil {
		sys.saveTimer.Stop()
	}
	sys.saveTimer = time.AfterFunc(sys.saveDelay, sys.save)
}

// save builds a Snapshot of current configuration and invokes
// saveCallback. Runs on the debounce timer's own goroutine.
func (sys *System) save() {
	sys.mu.RLock()
	snap := Snapshot{}
	for _, p := range sys.printers {
		p.mu.RLock()
		snap.Printers = append(snap.Printers, PrinterSnapshot{
			ID:         p.id,
			Name:       p.name,
			DeviceURI:  p.deviceURI,
			DriverName: p.driverName,
			MediaReady: append([]MediaCol{}, p.mediaReady...),
			IsStopped:  p.isStopped,
		})
		p.mu.RUnlock()
	}
	cb := sys.saveCallback
	sys.mu.RUnlock()

	if cb != nil {
		cb(snap)
	}
}
