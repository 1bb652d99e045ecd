package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sanscope/sanscope/internal/database"
	"github.com/sanscope/sanscope/internal/stats"
)

func newStatsCmd() *cobra.Command {
	var (
		outFile string
		fid     int
		poll    float64
		max     int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Poll port statistics and record the deltas between samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			if outFile == "" {
				return inputErrorf("missing required output file: -o")
			}
			if fid < 1 || fid > 128 {
				return inputErrorf("FID %d out of range 1-128", fid)
			}
			cfg := cliConfig()
			interval := cfg.Stats.Interval
			if poll > 0 {
				interval = time.Duration(poll * float64(time.Second))
			}
			if max <= 0 {
				max = cfg.Stats.MaxSamples
			}

			ctx, cancel := signalContext()
			defer cancel()

			session, err := loginREST(ctx)
			if err != nil {
				return err
			}
			defer session.Logout(context.Background())

			feedback(append(loginFeedback(),
				"Output file, -o:     "+outFile,
				fmt.Sprintf("FID, -fid:           %d", fid),
				fmt.Sprintf("Poll interval, -p:   %s", interval),
				fmt.Sprintf("Max samples, -m:     %d", max),
			)...)

			collection, err := stats.NewPoller(session, fid, interval, max).Run(ctx)
			if err != nil {
				return err
			}
			if err := collection.Save(outFile); err != nil {
				return err
			}
			feedback(fmt.Sprintf("%d samples written to %s", len(collection.SwitchList), outFile))
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "o", "", `Required. Output file for sampled statistics. ".json" is automatically appended.`)
	cmd.Flags().IntVar(&fid, "fid", 128, "Fabric ID of the logical switch whose statistics are sampled.")
	cmd.Flags().Float64Var(&poll, "p", 0, "Polling interval in seconds. Intervals below 2.1 seconds are raised to the minimum.")
	cmd.Flags().IntVar(&max, "m", 0, "Maximum number of samples.")
	return cmd
}

func newStatsDBCmd() *cobra.Command {
	var (
		inFile string
		fid    int
		poll   float64
		max    int
	)
	cmd := &cobra.Command{
		Use:   "statsdb",
		Short: "Write sampled port statistics to the database",
		Long:  "Reads a previously saved statistics collection with -i, or polls a switch live when login parameters are given, and writes every sample row to the SQLite database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cliConfig()

			var collection *stats.Collection
			if inFile != "" {
				feedback("Input file, -i:      " + inFile)
				var err error
				if collection, err = stats.LoadCollection(inFile); err != nil {
					return inputErrorf("%v", err)
				}
			} else {
				if err := requireLogin(); err != nil {
					return err
				}
				if fid < 1 || fid > 128 {
					return inputErrorf("FID %d out of range 1-128", fid)
				}
				interval := cfg.Stats.Interval
				if poll > 0 {
					interval = time.Duration(poll * float64(time.Second))
				}
				if max <= 0 {
					max = cfg.Stats.MaxSamples
				}

				ctx, cancel := signalContext()
				defer cancel()

				session, err := loginREST(ctx)
				if err != nil {
					return err
				}
				defer session.Logout(context.Background())

				feedback(append(loginFeedback(),
					fmt.Sprintf("FID, -fid:           %d", fid),
				)...)

				if collection, err = stats.NewPoller(session, fid, interval, max).Run(ctx); err != nil {
					return err
				}
			}

			if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
				return err
			}
			defer database.Close()

			rows, err := stats.WriteCollection(database.GetDB(), collection)
			if err != nil {
				return err
			}
			feedback(fmt.Sprintf("%d statistic rows written to %s", rows, cfg.Database.SQLite.Path))
			return nil
		},
	}
	cmd.Flags().StringVar(&inFile, "i", "", "Statistics collection file from a previous stats run. When omitted, statistics are polled live.")
	cmd.Flags().IntVar(&fid, "fid", 128, "Fabric ID of the logical switch whose statistics are sampled.")
	cmd.Flags().Float64Var(&poll, "p", 0, "Polling interval in seconds.")
	cmd.Flags().IntVar(&max, "m", 0, "Maximum number of samples.")
	return cmd
}

func newStatsReportCmd() *cobra.Command {
	var (
		inFile  string
		repFile string
	)
	cmd := &cobra.Command{
		Use:   "statsreport",
		Short: "Generate an Excel report from a statistics collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inFile == "" {
				return inputErrorf("missing required input file: -i")
			}
			if repFile == "" {
				return inputErrorf("missing required report name: -r")
			}
			feedback(
				"Input file, -i:      "+inFile,
				"Report, -r:          "+repFile,
			)

			collection, err := stats.LoadCollection(inFile)
			if err != nil {
				return inputErrorf("%v", err)
			}
			if err := stats.WriteReport(collection, repFile); err != nil {
				return err
			}
			feedback("Report written to " + repFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&inFile, "i", "", "Required. Statistics collection file from a previous stats run.")
	cmd.Flags().StringVar(&repFile, "r", "", `Required. Name of the Excel report. ".xlsx" is automatically appended.`)
	return cmd
}
