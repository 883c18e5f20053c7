// MFP - Miulti-Function Printers and scanners toolkit
// Printer Application core
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// Attribute filtering

package papp

import (
	"sort"
	"strings"

	"github.com/OpenPrinting/goipp"
)

// heavyweight names heavyweight attributes are excluded from a
// requested-attributes="all" copy unless the client names them
// explicitly, matching RFC 8011's treatment of *-database attributes.
var heavyweightAttrs = map[string]bool{
	"media-col-database": true,
	"printer-icc-profiles": true,
}

// copyAttributes appends to dst every attribute of src whose name is
// in requested, or every non-heavyweight name if requested is nil
// (meaning "all" — see requestedArray). src is expected to already
// be scoped to a single attribute group (the Job/Printer/System
// attrs collection the caller read it from); the destination group
// is implicit in which accessor (rsp.Printer(), rsp.Job(), ...) the
// caller passed as dst.
func copyAttributes(dst *goipp.Attributes, src goipp.Attributes, requested map[string]bool) {
	all := requested == nil

	for _, attr := range src {
		if !all && !requested[attr.Name] {
			continue
		}
		if all && heavyweightAttrs[attr.Name] {
			continue
		}

		dst.Add(attr)
	}
}

// requestedArray extracts the set of names (an unordered map) from
// the request's "requested-attributes" operation attribute. A nil
// return means "all" (the attribute was absent or held the "all"
// keyword).
func requestedArray(req *goipp.Message) map[string]bool {
	op := req.Operation()

	for _, attr := range *op {
		if attr.Name != "requested-attributes" {
			continue
		}

		names := make(map[string]bool, len(attr.Values))
		for _, v := range attr.Values {
			name, ok := v.V.(goipp.String)
			if !ok {
				continue
			}
			if string(name) == "all" {
				return nil
			}
			names[string(name)] = true
		}
		return names
	}

	return nil
}

// sortedNames returns the names of a name set in sorted order, for a
// deterministic view of it.
func sortedNames(names map[string]bool) []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// addKeyword appends a single keyword-tagged string value.
func addKeyword(attrs *goipp.Attributes, name string, tag goipp.Tag, kw string) {
	attrs.Add(goipp.Attribute{
		Name:   name,
		Values: goipp.Values{{T: tag, V: goipp.String(kw)}},
	})
}

// addKeywords appends a multi-valued keyword attribute.
func addKeywords(attrs *goipp.Attributes, name string, tag goipp.Tag, kws []string) {
	if len(kws) == 0 {
		return
	}
	var vals goipp.Values
	for _, kw := range kws {
		vals.Add(tag, goipp.String(kw))
	}
	attrs.Add(goipp.Attribute{Name: name, Values: vals})
}

// addInteger appends a single integer-tagged value.
func addInteger(attrs *goipp.Attributes, name string, tag goipp.Tag, v int) {
	attrs.Add(goipp.Attribute{
		Name:   name,
		Values: goipp.Values{{T: tag, V: goipp.Integer(v)}},
	})
}

// addIntegers appends a multi-valued integer attribute.
func addIntegers(attrs *goipp.Attributes, name string, tag goipp.Tag, v []int) {
	if len(v) == 0 {
		return
	}
	var vals goipp.Values
	for _, i := range v {
		vals.Add(tag, goipp.Integer(i))
	}
	attrs.Add(goipp.Attribute{Name: name, Values: vals})
}

// addBoolean appends a single boolean value.
func addBoolean(attrs *goipp.Attributes, name string, v bool) {
	attrs.Add(goipp.Attribute{
		Name:   name,
		Values: goipp.Values{{T: goipp.TagBoolean, V: goipp.Boolean(v)}},
	})
}

// addRange appends a rangeOfInteger value.
func addRange(attrs *goipp.Attributes, name string, lo, hi int) {
	attrs.Add(goipp.Attribute{
		Name: name,
		Values: goipp.Values{
			{T: goipp.TagRange, V: goipp.Range{Lower: lo, Upper: hi}},
		},
	})
}

// firstString returns the first string-typed value of the named
// attribute in attrs, or "" if absent.
func firstString(attrs goipp.Attributes, name string) (string, bool) {
	for _, attr := range attrs {
		if attr.Name != name || len(attr.Values) == 0 {
			continue
		}
		if s, ok := attr.Values[0].V.(goipp.String); ok {
			return string(s), true
		}
	}
	return "", false
}

// firstInteger returns the first integer-typed value of the named
// attribute in attrs, or 0 if absent.
func firstInteger(attrs goipp.Attributes, name string) (int, bool) {
	for _, attr := range attrs {
		if attr.Name != name || len(attr.Values) == 0 {
			continue
		}
		if i, ok := attr.Values[0].V.(goipp.Integer); ok {
			return int(i), true
		}
	}
	return 0, false
}

// firstBoolean returns the first boolean-typed value of the named
// attribute in attrs.
func firstBoolean(attrs goipp.Attributes, name string) (bool, bool) {
	for _, attr := range attrs {
		if attr.Name != name || len(attr.Values) == 0 {
			continue
		}
		if b, ok := attr.Values[0].V.(goipp.Boolean); ok {
			return bool(b), true
		}
	}
	return false, false
}

// vendorDefaultName reports whether name has the shape of a vendor
// extension default: a "...-default" name that is not one of the
// standard names in the static settable-attribute table. Used by the
// set-attributes preflight when a name isn't found in that table.
func vendorDefaultName(name string) bool {
	return strings.HasSuffix(name, "-default") && !settableAttrs[name]
}
