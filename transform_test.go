// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package abp_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/OpenPSG/abp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeidentify(t *testing.T) {
	rec := readTestRecord(t)
	rec.Deidentify()

	assert.Empty(t, rec.Subject)
	assert.Equal(t, abp.Metadata{Sections: []abp.Section{
		{Name: "PATIENTINFO", Fields: []abp.Field{
			{Key: "DOB", Value: ""},
			{Key: "RACE", Value: ""},
		}},
		{Name: "REPORTINFO", Trailer: true, Fields: []abp.Field{
			{Key: "PHYSICIAN", Value: ""},
			{Key: "NURSETECH", Value: ""},
			{Key: "STATUS", Value: ""},
			{Key: "CALIPERSUMMARY", Sub: &abp.Section{
				Name: "CALIPERSUMMARY",
				Fields: []abp.Field{
					{Key: "COUNT", Value: ""},
				},
			}},
		}},
	}}, rec.Metadata)

	// The measurement table is untouched.
	require.Len(t, rec.Table.Rows, 15)
	assert.Equal(t, intp(11), rec.Table.Rows[0].Sys)

	// Idempotent: applying twice yields the same state as applying once.
	twice := readTestRecord(t)
	twice.Deidentify()
	twice.Deidentify()
	assert.Equal(t, *rec, *twice)
}

func TestTimeshift(t *testing.T) {
	for seed := int64(0); seed < 25; seed++ {
		rec := readTestRecord(t)
		original := make([]time.Time, len(rec.Table.Rows))
		for i := range rec.Table.Rows {
			original[i] = rec.Table.Rows[i].Timestamp
		}

		rec.Timeshift(rand.New(rand.NewSource(seed)))

		// One uniform offset: pairwise spacing is preserved exactly.
		offset := rec.Table.Rows[0].Timestamp.Sub(original[0])
		for i := range rec.Table.Rows {
			require.Equal(t, offset, rec.Table.Rows[i].Timestamp.Sub(original[i]),
				"seed %d row %d", seed, i)
		}

		// The offset lands within [730, 30] whole days into the past.
		assert.GreaterOrEqual(t, offset, -730*24*time.Hour, "seed %d", seed)
		assert.LessOrEqual(t, offset, -30*24*time.Hour, "seed %d", seed)
		assert.Zero(t, offset%(24*time.Hour), "seed %d: offset is whole days", seed)

		// Derived date/time columns recompute from the shifted timestamp.
		for i := range rec.Table.Rows {
			row := &rec.Table.Rows[i]
			assert.Equal(t, row.Timestamp, row.Date().Add(row.TimeOfDay()))
		}
	}
}

func TestTimeshiftMovesWindowColumns(t *testing.T) {
	rec := readTestRecord(t)
	require.NoError(t, rec.SetWindow(30*time.Second, abp.WindowBFill))

	original := rec.Table.Rows[0].Timestamp
	rec.Timeshift(rand.New(rand.NewSource(1)))

	offset := rec.Table.Rows[0].Timestamp.Sub(original)
	for i := range rec.Table.Rows {
		row := &rec.Table.Rows[i]
		require.NotNil(t, row.WindowStart)
		require.NotNil(t, row.WindowEnd)
		assert.Equal(t, row.Timestamp.Add(-30*time.Second), *row.WindowStart)
		assert.Equal(t, row.Timestamp, *row.WindowEnd)
	}
	assert.Less(t, offset, time.Duration(0))
}

func TestTimeshiftNotIdempotent(t *testing.T) {
	rec := readTestRecord(t)
	rng := rand.New(rand.NewSource(7))

	first := rec.Table.Rows[0].Timestamp
	rec.Timeshift(rng)
	second := rec.Table.Rows[0].Timestamp
	rec.Timeshift(rng)
	third := rec.Table.Rows[0].Timestamp

	// Each call draws a fresh offset relative to the current timestamps.
	assert.True(t, second.Before(first))
	assert.True(t, third.Before(second))
}

func TestTimeshiftReindexesTable(t *testing.T) {
	rec := readTestRecord(t)
	rec.DropEB()
	rec.Timeshift(rand.New(rand.NewSource(3)))

	require.True(t, rec.Table.Indexed())
	row, ok := rec.Table.At(rec.Table.Rows[0].Timestamp)
	require.True(t, ok)
	assert.Equal(t, &rec.Table.Rows[0], row)
}

func TestDropEB(t *testing.T) {
	rec := readTestRecord(t)
	rec.DropEB()

	// The fixture's rows 0, 5 and 6 carry the invalid-reading flag.
	require.Len(t, rec.Table.Rows, 12)
	for i := range rec.Table.Rows {
		assert.NotEqual(t, abp.InvalidReadingCode, rec.Table.Rows[i].Error)
	}
	assert.Equal(t, time.Date(1999, 1, 1, 17, 5, 0, 0, time.UTC), rec.Table.Rows[0].Timestamp)

	// The timestamp is now the table's identity key.
	require.True(t, rec.Table.Indexed())
	row, ok := rec.Table.At(time.Date(1999, 1, 1, 17, 28, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, intp(164), row.Sys)

	_, ok = rec.Table.At(time.Date(1999, 1, 1, 17, 3, 0, 0, time.UTC))
	assert.False(t, ok)

	// Idempotent: a second call is a no-op.
	beforeRows := append([]abp.Row(nil), rec.Table.Rows...)
	rec.DropEB()
	assert.Equal(t, beforeRows, rec.Table.Rows)
	assert.True(t, rec.Table.Indexed())
}

func TestSetWindow(t *testing.T) {
	anchor := time.Date(1999, 1, 1, 17, 3, 0, 0, time.UTC)
	for _, tt := range []struct {
		policy abp.WindowPolicy
		start  time.Time
		end    time.Time
	}{
		{abp.WindowFFill, anchor, anchor.Add(30 * time.Second)},
		{abp.WindowBFill, anchor.Add(-30 * time.Second), anchor},
		{abp.WindowBFFill, anchor.Add(-15 * time.Second), anchor.Add(15 * time.Second)},
	} {
		t.Run(string(tt.policy), func(t *testing.T) {
			rec := readTestRecord(t)
			require.NoError(t, rec.SetWindow(30*time.Second, tt.policy))

			first := rec.Table.Rows[0]
			require.NotNil(t, first.WindowStart)
			require.NotNil(t, first.WindowEnd)
			assert.Equal(t, tt.start, *first.WindowStart)
			assert.Equal(t, tt.end, *first.WindowEnd)

			for i := range rec.Table.Rows {
				row := &rec.Table.Rows[i]
				assert.Equal(t, 30*time.Second, row.WindowEnd.Sub(*row.WindowStart))
			}
		})
	}
}

func TestSetWindowLastCallWins(t *testing.T) {
	rec := readTestRecord(t)
	anchor := rec.Table.Rows[0].Timestamp

	require.NoError(t, rec.SetWindow(30*time.Second, abp.WindowBFill))
	require.NoError(t, rec.SetWindow(time.Minute, abp.WindowFFill))

	assert.Equal(t, anchor, *rec.Table.Rows[0].WindowStart)
	assert.Equal(t, anchor.Add(time.Minute), *rec.Table.Rows[0].WindowEnd)
}

func TestSetWindowAfterDropEB(t *testing.T) {
	rec := readTestRecord(t)
	rec.DropEB()
	require.NoError(t, rec.SetWindow(30*time.Second, abp.WindowBFill))

	// The first remaining reading is 17:05:00.
	assert.Equal(t, time.Date(1999, 1, 1, 17, 4, 30, 0, time.UTC), *rec.Table.Rows[0].WindowStart)
	assert.Equal(t, time.Date(1999, 1, 1, 17, 5, 0, 0, time.UTC), *rec.Table.Rows[0].WindowEnd)
}

func TestSetWindowValidation(t *testing.T) {
	rec := readTestRecord(t)

	err := rec.SetWindow(-time.Second, abp.WindowFFill)
	var verr *abp.ValidationError
	require.True(t, errors.As(err, &verr), "want ValidationError, got %T", err)

	err = rec.SetWindow(30*time.Second, abp.WindowPolicy("nofill"))
	require.True(t, errors.As(err, &verr), "want ValidationError, got %T", err)
	assert.Contains(t, err.Error(), "nofill")

	// A failed call leaves the table untouched.
	assert.Nil(t, rec.Table.Rows[0].WindowStart)
}

func TestEndToEndScenario(t *testing.T) {
	// Drop then deidentify, and the reverse order, agree on the outcome.
	for _, order := range []string{"drop first", "deidentify first"} {
		t.Run(order, func(t *testing.T) {
			rec := readTestRecord(t)
			require.Equal(t, "000002", rec.Subject)
			assert.Equal(t, intp(11), rec.Table.Rows[0].Sys)
			assert.Equal(t, intp(0), rec.Table.Rows[0].Dia)
			assert.Equal(t, "EB", rec.Table.Rows[0].Error)

			if order == "drop first" {
				rec.DropEB()
				rec.Deidentify()
			} else {
				rec.Deidentify()
				rec.DropEB()
			}

			assert.Empty(t, rec.Subject)
			assert.True(t, rec.Table.Indexed())
			require.Len(t, rec.Table.Rows, 12)
			_, ok := rec.Table.At(time.Date(1999, 1, 1, 17, 3, 0, 0, time.UTC))
			assert.False(t, ok)
		})
	}
}
