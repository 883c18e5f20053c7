// MFP - Miulti-Function Printers and scanners toolkit
// Abstract definition for printer and scanner interfaces
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Printer driver contract

package abstract

import (
	"context"

	"github.com/OpenPrinting/goipp"
)

// IdentifyActions is a bitset of supported identify-actions keywords.
type IdentifyActions int

// Identify actions.
const (
	IdentifyDisplay IdentifyActions = 1 << iota
	IdentifyFlash
	IdentifySound
	IdentifySpeak
)

// IntRange is an inclusive integer range, used for things like
// copies-supported or print-darkness-supported.
type IntRange struct {
	Min, Max int
}

// Contains reports whether v lies within the range.
func (r IntRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Resolution is a print resolution, in the units the driver reports
// it in (normally dots per inch).
type Resolution struct {
	X, Y  int
	Units goipp.Units
}

// DriverData describes one printer's static capabilities, as
// reported by a Driver's Create function. Printer.copyAttributes
// synthesises the printer's supported/default IPP attributes from
// this record; it never talks to the device directly.
type DriverData struct {
	Name      string   // driver keyword, e.g. "dummy"
	MakeModel string   // printer-make-and-model
	Format    string   // document-format-default
	Formats   []string // document-format-supported

	Copies IntRange

	ColorModes       []string
	ColorModeDefault string

	ContentOptimize []string

	Qualities      []int // IPP print-quality enum values (3,4,5)
	QualityDefault int

	Scaling IntRange

	Speeds       []int
	SpeedDefault int

	Sides       []string
	SideDefault string

	Darkness        IntRange
	DarknessDefault int

	Orientations       []int
	OrientationDefault int

	Resolutions       []Resolution
	ResolutionDefault Resolution

	Bins       []string
	BinDefault string

	Sources       []string
	SourceDefault string

	Media        []string // PWG self-describing media-size keywords
	MediaDefault string

	NumSupply    int
	SupplyColors []string
	SupplyNames  []string
	SupplyTypes  []string

	IdentifyActionsSupported IdentifyActions
	PageRangesSupported      bool
	Borderless               bool

	// VendorDefaults carries "<vendor-prefix>-default" keys that
	// the driver exposes beyond the standard attributes above.
	VendorDefaults map[string]string

	// Attrs carries any further static printer attributes the
	// driver wants copied verbatim into the printer's attribute set.
	Attrs goipp.Attributes
}

// JobRef is the read-only view of a Job exposed to a driver's Render
// callback. It lets the driver cooperate with cancellation without
// reaching into Printer/Job internals.
type JobRef interface {
	ID() int
	Format() string
	Attrs() goipp.Attributes
	Canceled() bool
}

// StatusUpdate is a live refresh of printer status, returned by a
// Status callback invoked without the printer lock held.
type StatusUpdate struct {
	StateReasons []string
	MediaReady   []string
}

// WifiStatus reports the printer's current Wi-Fi association.
type WifiStatus struct {
	Configured bool
	SSID       string
}

// Callbacks collects every embedder-supplied hook the core may
// invoke. All fields are optional except Driver, which is required
// for Create-Printer to succeed.
type Callbacks struct {
	// Driver resolves a driver name + device URI into DriverData.
	Driver func(ctx context.Context, driverName, deviceURI string) (*DriverData, error)

	// AutoAdd maps a discovered device-id to a driver name, or
	// returns "" if no driver claims the device.
	AutoAdd func(name, deviceURI, deviceID string) string

	// Identify asks the device to make itself identifiable
	// (beep, flash, display a message).
	Identify func(ctx context.Context, actions IdentifyActions, message string) error

	// Status refreshes live printer state. Called without the
	// printer lock held, since it may block on device I/O.
	Status func(ctx context.Context, printerID int) StatusUpdate

	// WifiStatus and WifiJoin expose the device's Wi-Fi interface,
	// consulted only for clients connecting over loopback.
	WifiStatus func(ctx context.Context) (WifiStatus, error)
	WifiJoin   func(ctx context.Context, ssid, password string) error

	// Op handles an operation code the dispatcher does not
	// recognise natively. Returning ok=false causes the dispatcher
	// to reply Operation-Not-Supported.
	Op func(ctx context.Context, op goipp.Op, rq *goipp.Message) (rsp *goipp.Message, ok bool)

	// Register and Deregister are invoked for the proxy /
	// output-device scenario.
	Register   func(ctx context.Context, deviceUUID string, printerID int) error
	Deregister func(ctx context.Context, deviceUUID string, printerID int) error

	// Render is the driver's rendering entry point: it reads the
	// spooled document at spoolPath and drives the device. It must
	// poll job.Canceled() between chunks and return promptly once
	// set.
	Render func(ctx context.Context, job JobRef, spoolPath string) error
}

// Driver is a registrable named driver. The system matches a
// Create-Printer request's driver keyword, or a discovered
// device-id via AutoAdd, against a Driver's Name/IDMatches.
type Driver struct {
	Name      string
	IDMatches []string
	Create    func(ctx context.Context, deviceURI string) (*DriverData, error)
}
