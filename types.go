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
	"fmt"
	"time"
)

// InvalidReadingCode is the error code the monitor attaches to readings it
// considers physiologically invalid.
const InvalidReadingCode = "EB"

// Date and time layouts used by the report format.
const (
	DateLayout = "02.01.06"
	TimeLayout = "15:04:05"
)

// WindowPolicy selects how an alignment window is anchored to a reading's
// timestamp.
type WindowPolicy string

const (
	WindowFFill  WindowPolicy = "ffill"  // window extends forward from the timestamp
	WindowBFill  WindowPolicy = "bfill"  // window extends backward from the timestamp
	WindowBFFill WindowPolicy = "bffill" // window is centered on the timestamp
)

// Record is one parsed report: the subject identifier, the metadata tree and
// the measurement table. A Record is created by Parse or ReadFile only; the
// transformation methods mutate it in place and Write only reads it.
type Record struct {
	Subject  string   // Patient identifier from the report's subject line
	Metadata Metadata // Header and trailer metadata sections
	Table    Table    // Measurement table, in file order
}

// Metadata is the ordered tree of metadata sections. Order is preserved so
// that a written report reproduces the original section and field layout.
type Metadata struct {
	Sections []Section
}

// Section is one bracket-tagged metadata section.
type Section struct {
	Name    string
	Trailer bool // section appears after the measurement block
	Fields  []Field
}

// Field is one metadata entry: either a leaf string value or one nested
// sub-section (Sub non-nil). A blank Value is legal and distinct from an
// absent key.
type Field struct {
	Key   string
	Value string
	Sub   *Section
}

// Get returns the value at the given path, e.g. Get("REPORTINFO",
// "CALIPERSUMMARY", "COUNT"). A missing section or key reports ok=false with
// no error; an error is returned only for structurally malformed access,
// such as indexing through a leaf value as if it were a nested section.
func (m *Metadata) Get(section string, keys ...string) (value string, ok bool, err error) {
	if len(keys) == 0 {
		return "", false, fmt.Errorf("no key given for section %q", section)
	}
	sec := m.section(section)
	if sec == nil {
		return "", false, nil
	}
	return sec.get(keys)
}

// Set updates the value at the given path. The path must already exist: Set
// never invents sections or keys that were not present in the parsed report.
func (m *Metadata) Set(section string, value string, keys ...string) error {
	if len(keys) == 0 {
		return fmt.Errorf("no key given for section %q", section)
	}
	sec := m.section(section)
	if sec == nil {
		return fmt.Errorf("unknown section %q", section)
	}
	return sec.set(keys, value)
}

func (m *Metadata) section(name string) *Section {
	for i := range m.Sections {
		if m.Sections[i].Name == name {
			return &m.Sections[i]
		}
	}
	return nil
}

func (s *Section) field(key string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Key == key {
			return &s.Fields[i]
		}
	}
	return nil
}

func (s *Section) get(keys []string) (string, bool, error) {
	f := s.field(keys[0])
	if f == nil {
		return "", false, nil
	}
	if len(keys) == 1 {
		if f.Sub != nil {
			return "", false, fmt.Errorf("%s.%s is a nested section, not a value", s.Name, f.Key)
		}
		return f.Value, true, nil
	}
	if f.Sub == nil {
		return "", false, fmt.Errorf("cannot index through value %s.%s", s.Name, f.Key)
	}
	return f.Sub.get(keys[1:])
}

func (s *Section) set(keys []string, value string) error {
	f := s.field(keys[0])
	if f == nil {
		return fmt.Errorf("unknown key %s.%s", s.Name, keys[0])
	}
	if len(keys) == 1 {
		if f.Sub != nil {
			return fmt.Errorf("%s.%s is a nested section, not a value", s.Name, f.Key)
		}
		f.Value = value
		return nil
	}
	if f.Sub == nil {
		return fmt.Errorf("cannot index through value %s.%s", s.Name, f.Key)
	}
	return f.Sub.set(keys[1:], value)
}

// identifyingFields enumerates the metadata fields Deidentify blanks. Fields
// absent from a given report are skipped; keys are never removed, so the
// structural shape of the tree survives deidentification.
var identifyingFields = []struct {
	section string
	keys    []string
}{
	{"PATIENTINFO", []string{"DOB"}},
	{"PATIENTINFO", []string{"RACE"}},
	{"REPORTINFO", []string{"PHYSICIAN"}},
	{"REPORTINFO", []string{"NURSETECH"}},
	{"REPORTINFO", []string{"STATUS"}},
	{"REPORTINFO", []string{"CALIPERSUMMARY", "COUNT"}},
}

func (m *Metadata) clearIdentifyingFields() {
	for _, f := range identifyingFields {
		sec := m.section(f.section)
		if sec == nil {
			continue
		}
		// Ignore unknown-key errors: an absent field has nothing to clear.
		_ = sec.set(f.keys, "")
	}
}

// ColumnSet records which optional accelerometer columns the report emits.
// Absence is column-wide, decided once at parse time, never per row.
type ColumnSet struct {
	AccX, AccY, AccZ bool
}

// Table is the ordered measurement table. Insertion order is the order of
// appearance in the source file, which is the canonical time order even when
// the device emits out-of-order or retried samples.
type Table struct {
	Rows    []Row
	Columns ColumnSet

	// byTime is nil until DropEB promotes the timestamp to the table's
	// identity key.
	byTime map[time.Time]int
}

// Row is one reading. The integer columns are nullable independently per
// row; nil means the field was empty in the report.
type Row struct {
	Timestamp time.Time
	Sys       *int // systolic pressure, mmHg
	Dia       *int // diastolic pressure, mmHg
	AccX      *int
	AccY      *int
	AccZ      *int
	Error     string // device error code, empty when the reading is valid

	// Alignment window, populated by SetWindow. Derived columns: never
	// serialized by Write.
	WindowStart *time.Time
	WindowEnd   *time.Time
}

// Date returns the calendar date component of the reading's timestamp.
func (r *Row) Date() time.Time {
	y, m, d := r.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.Timestamp.Location())
}

// TimeOfDay returns the time-of-day component of the reading's timestamp.
func (r *Row) TimeOfDay() time.Duration {
	return r.Timestamp.Sub(r.Date())
}

// indexByTimestamp is the one-way conversion from the ordered-rows
// representation to the keyed-by-timestamp representation.
func (t *Table) indexByTimestamp() {
	t.byTime = make(map[time.Time]int, len(t.Rows))
	for i := range t.Rows {
		t.byTime[t.Rows[i].Timestamp] = i
	}
}

// Indexed reports whether DropEB has promoted the timestamp to the table's
// identity key.
func (t *Table) Indexed() bool {
	return t.byTime != nil
}

// At returns the reading with the given timestamp. It requires the indexed
// state established by DropEB; on an unindexed table it reports false.
func (t *Table) At(ts time.Time) (*Row, bool) {
	if t.byTime == nil {
		return nil, false
	}
	i, ok := t.byTime[ts]
	if !ok {
		return nil, false
	}
	return &t.Rows[i], true
}
