// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Built-in "dummy" driver: spools to file, then sleeps and completes

package papp

import (
	"context"
	"time"

	"github.com/OpenPrinting/go-papp/abstract"
)

// DummyDriver is a built-in driver with no real device behind it: it
// reports a fixed capability set and "prints" by sleeping for a fixed
// short duration, whatever the spooled file size. It exists for the
// end-to-end scenarios of the test suite and for cmd/papp-server's
// demo mode.
var DummyDriver = abstract.Driver{
	Name: "dummy",
	Create: func(ctx context.Context, deviceURI string) (*abstract.DriverData, error) {
		return &abstract.DriverData{
			Name:               "dummy",
			MakeModel:          "Example Dummy Printer",
			Format:             "application/pdf",
			Formats:            []string{"application/pdf", "image/pwg-raster", "image/urf", "application/octet-stream"},
			Copies:             abstract.IntRange{Min: 1, Max: 999},
			ColorModes:         []string{"auto", "color", "monochrome"},
			ColorModeDefault:   "auto",
			Qualities:          []int{QualityDraft, QualityNormal, QualityHigh},
			QualityDefault:     QualityNormal,
			Sides:              []string{"one-sided", "two-sided-long-edge", "two-sided-short-edge"},
			SideDefault:        "one-sided",
			Sources:            []string{"main", "manual"},
			SourceDefault:      "main",
			Media:              []string{"na_letter_8.5x11in", "iso_a4_210x297mm"},
			MediaDefault:       "na_letter_8.5x11in",
			NumSupply:          2,
			SupplyColors:       []string{"black", "#00FFFF"},
			SupplyNames:        []string{"Black Toner", "Cyan Toner"},
			SupplyTypes:        []string{"toner", "toner"},
			IdentifyActionsSupported: abstract.IdentifyDisplay | abstract.IdentifySound,
			PageRangesSupported:      true,
		}, nil
	},
}

// DummyCallbacks wires DummyDriver and its Render/Identify behavior
// into a Callbacks value suitable for SystemConfig.Callbacks.
func DummyCallbacks() abstract.Callbacks {
	return abstract.Callbacks{
		Driver: func(ctx context.Context, driverName, deviceURI string) (*abstract.DriverData, error) {
			return DummyDriver.Create(ctx, deviceURI)
		},
		Identify: func(ctx context.Context, actions abstract.IdentifyActions, message string) error {
			return nil
		},
		Render: dummyRender,
	}
}

// dummyRender simulates printing by sleeping four 50 ms chunks,
// independent of the spooled data's size, polling job.Canceled()
// between chunks so Cancel-Job can interrupt it promptly (it then
// returns nil).
func dummyRender(ctx context.Context, job abstract.JobRef, spoolPath string) error {
	const perChunk = 50 * time.Millisecond
	const chunks = 4

	for i := 0; i < chunks; i++ {
		if job.Canceled() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(perChunk):
		}
	}

	return nil
}
