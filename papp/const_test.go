// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// IPP state enums and keyword tables -- tests

package papp

import (
	"reflect"
	"testing"
)

func TestJobStateTerminalActive(t *testing.T) {
	type testData struct {
		state    JobState
		terminal bool
		active   bool
	}

	tests := []testData{
		{JobPending, false, true},
		{JobHeld, false, true},
		{JobProcessing, false, true},
		{JobStopped, false, false},
		{JobCanceled, true, false},
		{JobAborted, true, false},
		{JobCompleted, true, false},
	}

	for _, test := range tests {
		if got := test.state.Terminal(); got != test.terminal {
			t.Errorf("%s.Terminal(): expected %v, present %v",
				test.state, test.terminal, got)
		}
		if got := test.state.Active(); got != test.active {
			t.Errorf("%s.Active(): expected %v, present %v",
				test.state, test.active, got)
		}
	}
}

func TestJobStateReasonKeywords(t *testing.T) {
	if got := JobReasonNone.Keywords(); !reflect.DeepEqual(got, []string{"none"}) {
		t.Errorf("JobReasonNone.Keywords(): expected [none], present %v", got)
	}

	r := JobReasonJobIncoming | JobReasonFetchable
	got := r.Keywords()
	want := []string{"job-incoming", "job-fetchable"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords(): expected %v, present %v", want, got)
	}
}

func TestJobStateReasonBitsDistinct(t *testing.T) {
	// every named reason must occupy its own bit; this catches the
	// iota-starts-at-1 mistake that silently merges two reasons
	bits := []JobStateReason{
		JobReasonJobIncoming,
		JobReasonJobCanceledByUser,
		JobReasonAborted,
		JobReasonCompletedSuccessfully,
		JobReasonProcessing,
		JobReasonFetchable,
	}

	seen := JobStateReason(0)
	for _, b := range bits {
		if seen&b != 0 {
			t.Fatalf("reason bit %d overlaps a previous reason", b)
		}
		seen |= b
	}
}

func TestPrinterStateReasonBitsDistinct(t *testing.T) {
	bits := []PrinterStateReason{
		PrinterReasonMediaEmpty,
		PrinterReasonMediaJam,
		PrinterReasonTonerLow,
		PrinterReasonTonerEmpty,
		PrinterReasonDoorOpen,
		PrinterReasonMarkerSupplyLow,
		PrinterReasonMarkerSupplyEmpty,
		PrinterReasonIdentifyPrinterRequested,
	}

	seen := PrinterStateReason(0)
	for _, b := range bits {
		if seen&b != 0 {
			t.Fatalf("reason bit %d overlaps a previous reason", b)
		}
		seen |= b
	}
}
