// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"
	"time"

	"github.com/OpenPSG/abp"
	"github.com/spf13/cobra"
)

var (
	flagWindow string
	flagPolicy string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [report]",
	Short: "Summarize a report and preview its alignment windows",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&flagWindow, "window", "", "alignment window duration (default from config)")
	inspectCmd.Flags().StringVar(&flagPolicy, "policy", "", "window policy: ffill, bfill or bffill (default from config)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	rec, err := abp.ReadFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Subject:  %s\n", rec.Subject)
	for _, s := range rec.Metadata.Sections {
		region := "header"
		if s.Trailer {
			region = "trailer"
		}
		fmt.Printf("Section:  %s (%s, %d fields)\n", s.Name, region, len(s.Fields))
	}

	var invalid int
	for i := range rec.Table.Rows {
		if rec.Table.Rows[i].Error == abp.InvalidReadingCode {
			invalid++
		}
	}
	fmt.Printf("Readings: %d (%d flagged %s)\n", len(rec.Table.Rows), invalid, abp.InvalidReadingCode)

	if len(rec.Table.Rows) == 0 {
		return nil
	}

	window := flagWindow
	if window == "" {
		window = cfg.WindowDuration
	}
	policy := flagPolicy
	if policy == "" {
		policy = cfg.WindowPolicy
	}
	duration, err := time.ParseDuration(window)
	if err != nil {
		return fmt.Errorf("parse window duration: %w", err)
	}
	if err := rec.SetWindow(duration, abp.WindowPolicy(policy)); err != nil {
		return err
	}

	first := rec.Table.Rows[0]
	fmt.Printf("Window:   %s %s -> [%s, %s]\n", window, policy,
		first.WindowStart.Format(time.DateTime), first.WindowEnd.Format(time.DateTime))
	return nil
}
