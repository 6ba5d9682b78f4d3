// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package abp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// dataSection is the marker separating the header metadata from the
// measurement block.
const dataSection = "DATA"

// ReadFile parses the report at the given path into a Record.
func ReadFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a report and returns the parsed Record. The report consists of
// a subject line, one or more header metadata sections, the [DATA] block of
// measurement lines, and one or more trailer metadata sections. Parse is a
// pure function of the input bytes; on a FormatError no Record is returned.
func Parse(r io.Reader) (*Record, error) {
	sc := bufio.NewScanner(r)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if len(lines) == 0 {
		return nil, &FormatError{Msg: "empty report"}
	}

	// The first line is always the subject identifier, verbatim. It may be
	// blank (a deidentified report) but never a section marker.
	subject := strings.TrimSpace(lines[0])
	if strings.HasPrefix(subject, "[") {
		return nil, &FormatError{Line: 1, Msg: "missing subject line"}
	}
	rec := &Record{Subject: subject}

	// Header metadata sections, up to the [DATA] marker.
	i, err := parseSections(lines, 1, false, &rec.Metadata)
	if err != nil {
		return nil, err
	}
	if len(rec.Metadata.Sections) == 0 {
		return nil, &FormatError{Msg: "missing header metadata section"}
	}
	if i >= len(lines) {
		return nil, &FormatError{Section: dataSection, Msg: "missing [DATA] marker"}
	}
	i++ // consume the [DATA] marker

	// Measurement block, up to the first trailer section marker.
	i, err = parseReadings(lines, i, &rec.Table)
	if err != nil {
		return nil, err
	}

	// Trailer metadata sections, to end of input.
	if _, err := parseSections(lines, i, true, &rec.Metadata); err != nil {
		return nil, err
	}
	var trailers int
	for _, s := range rec.Metadata.Sections {
		if s.Trailer {
			trailers++
		}
	}
	if trailers == 0 {
		return nil, &FormatError{Msg: "missing trailer metadata section"}
	}

	return rec, nil
}

// parseSections consumes metadata sections starting at line index i. For the
// header (trailer=false) it stops at the [DATA] marker and returns its index;
// for the trailer it consumes to end of input.
func parseSections(lines []string, i int, trailer bool, m *Metadata) (int, error) {
	var sub *Section // open nested sub-section, if any
	for ; i < len(lines); i++ {
		raw := lines[i]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		indented := raw[0] == ' ' || raw[0] == '\t'
		if !indented {
			sub = nil
		}

		if name, ok := sectionMarker(trimmed); ok {
			if name == dataSection && !trailer {
				return i, nil
			}
			if !indented {
				m.Sections = append(m.Sections, Section{Name: name, Trailer: trailer})
				continue
			}
			// Nested sub-section marker, one level deep.
			if len(m.Sections) == 0 {
				return i, &FormatError{Line: i + 1, Msg: "nested section outside a section"}
			}
			cur := &m.Sections[len(m.Sections)-1]
			sub = &Section{Name: name}
			cur.Fields = append(cur.Fields, Field{Key: name, Sub: sub})
			continue
		}

		key, val, ok := strings.Cut(trimmed, ":")
		if !ok {
			return i, &FormatError{Line: i + 1, Msg: fmt.Sprintf("malformed metadata line %q", trimmed)}
		}
		f := Field{Key: strings.TrimSpace(key), Value: strings.TrimSpace(val)}
		switch {
		case indented:
			if sub == nil {
				return i, &FormatError{Line: i + 1, Msg: "indented field outside a nested section"}
			}
			sub.Fields = append(sub.Fields, f)
		case len(m.Sections) == 0:
			return i, &FormatError{Line: i + 1, Msg: "metadata field outside a section"}
		default:
			cur := &m.Sections[len(m.Sections)-1]
			cur.Fields = append(cur.Fields, f)
		}
	}
	return i, nil
}

// parseReadings consumes measurement lines starting at line index i and
// stops at the first section marker, which opens the trailer metadata.
func parseReadings(lines []string, i int, t *Table) (int, error) {
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "[") {
			break
		}
		row, err := parseReading(trimmed, i+1, &t.Columns)
		if err != nil {
			return i, err
		}
		t.Rows = append(t.Rows, row)
	}
	return i, nil
}

// parseReading parses one fixed-format measurement line:
// date,time,SYS,DIA,ACC_x,ACC_y,ACC_z,error. Empty fields are nulls. An
// accelerometer axis seen non-empty on any line marks that column present
// for the whole table.
func parseReading(line string, lineno int, cols *ColumnSet) (Row, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 8 {
		return Row{}, &FormatError{Line: lineno, Msg: fmt.Sprintf("expected 8 fields, got %d", len(fields))}
	}
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}

	date, err := time.Parse(DateLayout, fields[0])
	if err != nil {
		return Row{}, &FormatError{Line: lineno, Msg: "invalid date", Err: err}
	}
	tod, err := time.Parse(TimeLayout, fields[1])
	if err != nil {
		return Row{}, &FormatError{Line: lineno, Msg: "invalid time", Err: err}
	}

	row := Row{
		Timestamp: time.Date(date.Year(), date.Month(), date.Day(),
			tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC),
		Error: fields[7],
	}
	for _, col := range []struct {
		field string
		dst   **int
		seen  *bool
	}{
		{fields[2], &row.Sys, nil},
		{fields[3], &row.Dia, nil},
		{fields[4], &row.AccX, &cols.AccX},
		{fields[5], &row.AccY, &cols.AccY},
		{fields[6], &row.AccZ, &cols.AccZ},
	} {
		if col.field == "" {
			continue
		}
		v, err := strconv.Atoi(col.field)
		if err != nil {
			return Row{}, &FormatError{Line: lineno, Msg: "invalid integer field", Err: err}
		}
		*col.dst = &v
		if col.seen != nil {
			*col.seen = true
		}
	}
	return row, nil
}

// sectionMarker reports whether a trimmed line is a [NAME] section marker.
func sectionMarker(line string) (string, bool) {
	if len(line) < 3 || line[0] != '[' || line[len(line)-1] != ']' {
		return "", false
	}
	return line[1 : len(line)-1], true
}
