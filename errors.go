// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package abp

import "fmt"

// FormatError reports input that does not match the expected report layout:
// a missing section marker, a malformed metadata or measurement line, or an
// empty file. It always carries enough context (line number or section name)
// to locate the fault. Construction is all-or-nothing: no Record is returned
// alongside a FormatError.
type FormatError struct {
	Line    int    // 1-based line number, 0 when not line-scoped
	Section string // section name, empty when not section-scoped
	Msg     string
	Err     error
}

func (e *FormatError) Error() string {
	var loc string
	switch {
	case e.Line > 0:
		loc = fmt.Sprintf("line %d: ", e.Line)
	case e.Section != "":
		loc = fmt.Sprintf("section %s: ", e.Section)
	}
	if e.Err != nil {
		return fmt.Sprintf("abp: %s%s: %v", loc, e.Msg, e.Err)
	}
	return "abp: " + loc + e.Msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ValidationError reports an invalid caller-supplied parameter, such as an
// unknown window policy or a negative window duration.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "abp: " + e.Msg
}
