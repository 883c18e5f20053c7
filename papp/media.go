// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// media-col import/export

package papp

import (
	"github.com/OpenPrinting/goipp"
)

// MediaTracking is the media-tracking small enumeration.
type MediaTracking string

// Tracking values.
const (
	TrackingContinuous MediaTracking = "continuous"
	TrackingGap        MediaTracking = "gap"
	TrackingMark       MediaTracking = "mark"
	TrackingWeb        MediaTracking = "web"
)

// MediaCol is the decoded form of an IPP media-col collection.
// Width/length/margins are in hundredths of a millimetre, matching
// the wire representation.
type MediaCol struct {
	SizeName string
	Width    int
	Length   int

	Bottom, Top, Left, Right int

	Source    string
	TopOffset int
	Tracking  MediaTracking
	Type      string
}

// mediaColMember names the member attributes of a media-col
// collection, as used by both importMediaCol and exportMediaCol so
// the two stay in lock-step.
const (
	memberSizeName  = "media-size-name"
	memberSize      = "media-size"
	memberXDim      = "x-dimension"
	memberYDim      = "y-dimension"
	memberBottom    = "media-bottom-margin"
	memberTop       = "media-top-margin"
	memberLeft      = "media-left-margin"
	memberRight     = "media-right-margin"
	memberSource    = "media-source"
	memberTopOffset = "media-top-offset"
	memberTracking  = "media-tracking"
	memberType      = "media-type"
)

// importMediaCol decodes an IPP media-col collection value into a
// MediaCol. Absent members are left zero-valued.
func importMediaCol(col goipp.Collection) MediaCol {
	var mc MediaCol

	attrs := goipp.Attributes(col)

	if name, ok := firstString(attrs, memberSizeName); ok {
		mc.SizeName = name
	}

	for _, attr := range attrs {
		if attr.Name != memberSize || len(attr.Values) == 0 {
			continue
		}
		size, ok := attr.Values[0].V.(goipp.Collection)
		if !ok {
			continue
		}
		sizeAttrs := goipp.Attributes(size)
		if w, ok := firstInteger(sizeAttrs, memberXDim); ok {
			mc.Width = w
		}
		if l, ok := firstInteger(sizeAttrs, memberYDim); ok {
			mc.Length = l
		}
	}

	if v, ok := firstInteger(attrs, memberBottom); ok {
		mc.Bottom = v
	}
	if v, ok := firstInteger(attrs, memberTop); ok {
		mc.Top = v
	}
	if v, ok := firstInteger(attrs, memberLeft); ok {
		mc.Left = v
	}
	if v, ok := firstInteger(attrs, memberRight); ok {
		mc.Right = v
	}
	if v, ok := firstString(attrs, memberSource); ok {
		mc.Source = v
	}
	if v, ok := firstInteger(attrs, memberTopOffset); ok {
		mc.TopOffset = v
	}
	if v, ok := firstString(attrs, memberTracking); ok {
		mc.Tracking = MediaTracking(v)
	}
	if v, ok := firstString(attrs, memberType); ok {
		mc.Type = v
	}

	return mc
}

// exportMediaCol re-encodes a MediaCol as an IPP media-col
// collection value. Zero-valued optional fields are elided, per
// §4.3's "reverse operation may elide zero fields".
func exportMediaCol(mc MediaCol) goipp.Collection {
	var col goipp.Attributes

	if mc.SizeName != "" {
		addKeyword(&col, memberSizeName, goipp.TagKeyword, mc.SizeName)
	}

	if mc.Width != 0 || mc.Length != 0 {
		var size goipp.Attributes
		addInteger(&size, memberXDim, goipp.TagInteger, mc.Width)
		addInteger(&size, memberYDim, goipp.TagInteger, mc.Length)
		col.Add(goipp.Attribute{
			Name: memberSize,
			Values: goipp.Values{
				{T: goipp.TagBeginCollection, V: goipp.Collection(size)},
			},
		})
	}

	if mc.Bottom != 0 {
		addInteger(&col, memberBottom, goipp.TagInteger, mc.Bottom)
	}
	if mc.Top != 0 {
		addInteger(&col, memberTop, goipp.TagInteger, mc.Top)
	}
	if mc.Left != 0 {
		addInteger(&col, memberLeft, goipp.TagInteger, mc.Left)
	}
	if mc.Right != 0 {
		addInteger(&col, memberRight, goipp.TagInteger, mc.Right)
	}
	if mc.Source != "" {
		addKeyword(&col, memberSource, goipp.TagKeyword, mc.Source)
	}
	if mc.TopOffset != 0 {
		addInteger(&col, memberTopOffset, goipp.TagInteger, mc.TopOffset)
	}
	if mc.Tracking != "" {
		addKeyword(&col, memberTracking, goipp.TagKeyword, string(mc.Tracking))
	}
	if mc.Type != "" {
		addKeyword(&col, memberType, goipp.TagKeyword, mc.Type)
	}

	return goipp.Collection(col)
}
