// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Printer: a queue owned by the System -- tests

package papp

import (
	"testing"

	"github.com/OpenPrinting/go-papp/abstract"
	"github.com/OpenPrinting/goipp"
)

func testPrinterForAttrs(t *testing.T) *Printer {
	t.Helper()

	dd := &abstract.DriverData{
		Name:       "dummy",
		Format:     "application/pdf",
		Copies:     abstract.IntRange{Min: 1, Max: 99},
		Qualities:  []int{QualityDraft, QualityNormal, QualityHigh},
		Sides:      []string{"one-sided", "two-sided-long-edge"},
		ColorModes: []string{"color", "monochrome"},
	}

	return newPrinter(nil, 1, "test-printer", "dummy://", "dummy", dd, t.TempDir())
}

func TestSetAttributesRejectsOutOfRangePrintQuality(t *testing.T) {
	p := testPrinterForAttrs(t)

	var req goipp.Attributes
	addInteger(&req, "print-quality-default", goipp.TagEnum, 6)

	rejected, err := p.setAttributes(req)
	if err != nil {
		t.Fatalf("setAttributes: %s", err)
	}
	if len(rejected) != 1 || rejected[0] != "print-quality-default" {
		t.Errorf("expected print-quality-default rejected, got %v", rejected)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, a := range p.driverAttrs {
		if a.Name == "print-quality-default" {
			t.Errorf("rejected print-quality-default must not be stored, got %v", a)
		}
	}
}

func TestSetAttributesAcceptsInRangePrintQuality(t *testing.T) {
	p := testPrinterForAttrs(t)

	var req goipp.Attributes
	addInteger(&req, "print-quality-default", goipp.TagEnum, QualityHigh)

	rejected, err := p.setAttributes(req)
	if err != nil {
		t.Fatalf("setAttributes: %s", err)
	}
	if len(rejected) != 0 {
		t.Errorf("expected no rejections, got %v", rejected)
	}
}

func TestSetAttributesRejectsUnsupportedSides(t *testing.T) {
	p := testPrinterForAttrs(t)

	var req goipp.Attributes
	addKeyword(&req, "sides-default", goipp.TagKeyword, "two-sided-short-edge")

	rejected, _ := p.setAttributes(req)
	if len(rejected) != 1 || rejected[0] != "sides-default" {
		t.Errorf("expected sides-default rejected, got %v", rejected)
	}
}

func TestSetAttributesRejectsUnsupportedColorMode(t *testing.T) {
	p := testPrinterForAttrs(t)

	var req goipp.Attributes
	addKeyword(&req, "print-color-mode-default", goipp.TagKeyword, "auto")

	rejected, _ := p.setAttributes(req)
	if len(rejected) != 1 || rejected[0] != "print-color-mode-default" {
		t.Errorf("expected print-color-mode-default rejected, got %v", rejected)
	}
}

func TestSetAttributesGeoLocationBounds(t *testing.T) {
	cases := []struct {
		value    string
		rejected bool
	}{
		{"geo:0,0", false},
		{"geo:37.773,-122.419", false},
		{"geo:91,0", true},
		{"geo:0,-181", true},
		{"not-a-geo-uri", true},
	}

	for _, c := range cases {
		p := testPrinterForAttrs(t)

		var req goipp.Attributes
		addKeyword(&req, "printer-geo-location", goipp.TagURI, c.value)

		rejected, _ := p.setAttributes(req)
		got := len(rejected) > 0
		if got != c.rejected {
			t.Errorf("printer-geo-location=%q: expected rejected=%v, got %v", c.value, c.rejected, got)
		}
	}
}

func TestIsConsumableSupplyType(t *testing.T) {
	cases := map[string]bool{
		"toner":           true,
		"ink":             true,
		"inkCartridge":    true,
		"wasteToner":      false,
		"wasteInk":        false,
		"wasteReceptacle": false,
	}
	for typ, want := range cases {
		if got := isConsumableSupplyType(typ); got != want {
			t.Errorf("isConsumableSupplyType(%q) = %v, want %v", typ, got, want)
		}
	}
}
