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
)

// WriteFile writes the record to the file at the given path.
func (rec *Record) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := rec.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write renders the record in the report layout: subject line, header
// metadata sections, the [DATA] measurement block, then the trailer metadata
// sections. Section order, field order and exact field values are preserved,
// so Parse(Write(rec)) reproduces rec. The window columns are derived,
// cache-only data and are never serialized.
func (rec *Record) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, rec.Subject)
	for i := range rec.Metadata.Sections {
		if !rec.Metadata.Sections[i].Trailer {
			writeSection(bw, &rec.Metadata.Sections[i])
		}
	}
	fmt.Fprintf(bw, "[%s]\n", dataSection)
	for i := range rec.Table.Rows {
		writeReading(bw, &rec.Table.Rows[i])
	}
	for i := range rec.Metadata.Sections {
		if rec.Metadata.Sections[i].Trailer {
			writeSection(bw, &rec.Metadata.Sections[i])
		}
	}
	// bufio retains the first write error and reports it here.
	return bw.Flush()
}

func writeSection(bw *bufio.Writer, s *Section) {
	fmt.Fprintf(bw, "[%s]\n", s.Name)
	for _, f := range s.Fields {
		if f.Sub != nil {
			fmt.Fprintf(bw, "\t[%s]\n", f.Sub.Name)
			for _, nf := range f.Sub.Fields {
				fmt.Fprintf(bw, "\t%s: %s\n", nf.Key, nf.Value)
			}
			continue
		}
		fmt.Fprintf(bw, "%s: %s\n", f.Key, f.Value)
	}
}

func writeReading(bw *bufio.Writer, row *Row) {
	fmt.Fprintf(bw, "%s,%s,%s,%s,%s,%s,%s,%s\n",
		row.Timestamp.Format(DateLayout),
		row.Timestamp.Format(TimeLayout),
		formatOptionalInt(row.Sys),
		formatOptionalInt(row.Dia),
		formatOptionalInt(row.AccX),
		formatOptionalInt(row.AccY),
		formatOptionalInt(row.AccZ),
		row.Error)
}

func formatOptionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
