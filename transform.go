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
	"math/rand"
	"time"
)

// Bounds for the random timeshift offset, in whole days into the past. The
// upper bound keeps shifted timestamps at least a month before the
// originals so the true calendar dates cannot be reconstructed; the lower
// bound caps the shift at two years.
const (
	timeshiftMinDays = 30
	timeshiftMaxDays = 730
)

// Deidentify blanks the personally identifying metadata fields (date of
// birth, race, physician, nurse/tech, confirmation status, caliper summary
// count) and the subject identifier. Keys are blanked, never removed, so the
// metadata tree keeps its structural shape for write round-trips. The
// measurement table is untouched. Idempotent.
func (rec *Record) Deidentify() {
	rec.Subject = ""
	rec.Metadata.clearIdentifyingFields()
}

// Timeshift adds a single random offset to every timestamp in the table,
// including the window columns if present. The offset is a whole number of
// days drawn uniformly from [timeshiftMinDays, timeshiftMaxDays] into the
// past, so relative spacing between readings is preserved exactly while the
// shifted timeline can never coincide with the true one.
//
// Each call draws a fresh offset: Timeshift is not idempotent, and calling
// it again shifts relative to the already-shifted timestamps. Pass a
// seeded rng for reproducibility; nil uses a source seeded from the clock.
func (rec *Record) Timeshift(rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	days := timeshiftMinDays + rng.Intn(timeshiftMaxDays-timeshiftMinDays+1)
	offset := -time.Duration(days) * 24 * time.Hour

	for i := range rec.Table.Rows {
		row := &rec.Table.Rows[i]
		row.Timestamp = row.Timestamp.Add(offset)
		if row.WindowStart != nil {
			*row.WindowStart = row.WindowStart.Add(offset)
		}
		if row.WindowEnd != nil {
			*row.WindowEnd = row.WindowEnd.Add(offset)
		}
	}
	// An indexed table is keyed by timestamp; the keys just moved.
	if rec.Table.Indexed() {
		rec.Table.indexByTimestamp()
	}
}

// DropEB removes every reading whose error code marks it as physiologically
// invalid, then promotes the timestamp to the table's identity key. This is
// a one-way structural transition: all later timestamp lookups go through
// Table.At. Idempotent: on an already-filtered, already-indexed table no
// rows match and re-indexing changes nothing.
func (rec *Record) DropEB() {
	rows := rec.Table.Rows[:0]
	for _, row := range rec.Table.Rows {
		if row.Error == InvalidReadingCode {
			continue
		}
		rows = append(rows, row)
	}
	rec.Table.Rows = rows
	rec.Table.indexByTimestamp()
}

// SetWindow computes the alignment window columns for every reading: an
// interval of the given length anchored at the reading's timestamp according
// to the policy. Each call overwrites both columns, so re-invoking with
// different parameters replaces any earlier windows. The windows are derived
// from whatever timestamps currently exist, so calling SetWindow before or
// after Timeshift or DropEB yields different, equally well-defined results.
func (rec *Record) SetWindow(duration time.Duration, policy WindowPolicy) error {
	if duration < 0 {
		return &ValidationError{Msg: fmt.Sprintf("negative window duration %s", duration)}
	}
	switch policy {
	case WindowFFill, WindowBFill, WindowBFFill:
	default:
		return &ValidationError{Msg: fmt.Sprintf("unknown window policy %q", policy)}
	}

	for i := range rec.Table.Rows {
		row := &rec.Table.Rows[i]
		var start, end time.Time
		switch policy {
		case WindowFFill:
			start, end = row.Timestamp, row.Timestamp.Add(duration)
		case WindowBFill:
			start, end = row.Timestamp.Add(-duration), row.Timestamp
		case WindowBFFill:
			start, end = row.Timestamp.Add(-duration/2), row.Timestamp.Add(duration/2)
		}
		row.WindowStart, row.WindowEnd = &start, &end
	}
	return nil
}
