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
	"os"

	"github.com/OpenPSG/abp/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "abp",
	Short: "Prepare ambulatory blood-pressure reports for research use",
	Long: `abp parses ambulatory blood-pressure monitor exports and applies the
transformations needed before the data can be shared for research:
deidentification, random timeshifting, dropping device-flagged invalid
readings, and computing alignment windows for sensor fusion.`,
}

func execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.abp/config.yaml)")
}

func loadConfig() {
	c, err := config.Load(cfgFile)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	cfg = c
}
