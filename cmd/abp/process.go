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
	"math/rand"

	"github.com/OpenPSG/abp"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagOutput     string
	flagDeidentify bool
	flagPseudonym  bool
	flagTimeshift  bool
	flagSeed       int64
	flagDropEB     bool
)

var processCmd = &cobra.Command{
	Use:   "process [report]",
	Short: "Apply research transformations to a report and write the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output report path (required)")
	processCmd.Flags().BoolVar(&flagDeidentify, "deidentify", false, "blank identifying metadata and the subject id")
	processCmd.Flags().BoolVar(&flagPseudonym, "pseudonym", false, "replace the subject id with a random pseudonym")
	processCmd.Flags().BoolVar(&flagTimeshift, "timeshift", false, "shift all timestamps by one random offset into the past")
	processCmd.Flags().Int64Var(&flagSeed, "seed", 0, "random seed for --timeshift (default: process entropy)")
	processCmd.Flags().BoolVar(&flagDropEB, "drop-eb", false, "drop readings the device flagged as invalid")
	_ = processCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	rec, err := abp.ReadFile(args[0])
	if err != nil {
		return err
	}
	logger.Info("parsed report",
		zap.String("path", args[0]),
		zap.String("subject", rec.Subject),
		zap.Int("readings", len(rec.Table.Rows)))

	if flagDropEB {
		before := len(rec.Table.Rows)
		rec.DropEB()
		logger.Info("dropped invalid readings", zap.Int("dropped", before-len(rec.Table.Rows)))
	}
	if flagDeidentify {
		rec.Deidentify()
	}
	if !cmd.Flags().Changed("pseudonym") {
		flagPseudonym = cfg.Pseudonym
	}
	if flagPseudonym {
		rec.Subject = uuid.NewString()
		logger.Info("assigned pseudonym", zap.String("subject", rec.Subject))
	}
	if flagTimeshift {
		var rng *rand.Rand
		if cmd.Flags().Changed("seed") {
			rng = rand.New(rand.NewSource(flagSeed))
		}
		rec.Timeshift(rng)
	}

	if err := rec.WriteFile(flagOutput); err != nil {
		return err
	}
	logger.Info("wrote report", zap.String("path", flagOutput))
	return nil
}
