package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanscope/sanscope/internal/zone"
)

func newZoneCmd() *cobra.Command {
	var (
		cliFile string
		fid     int
		test    bool
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "zone",
		Short: "Apply a zoning CLI script as a single transaction",
		Long:  "Reads a file of zoning CLI commands (alicreate, zonecreate, cfgadd, ...) and applies them in order. Any failure aborts the transaction and discards unsaved changes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			if cliFile == "" {
				return inputErrorf("missing required zone script: -cli")
			}
			if !strings.Contains(cliFile, ".") {
				cliFile += ".txt"
			}
			if fid < 1 || fid > 128 {
				return inputErrorf("FID %d out of range 1-128", fid)
			}

			f, err := os.Open(cliFile)
			if err != nil {
				return inputErrorf("%v", err)
			}
			ops, err := zone.ParseFile(f)
			f.Close()
			if err != nil {
				return inputErrorf("%v", err)
			}
			if len(ops) == 0 {
				return inputErrorf("zone script %s contains no commands", cliFile)
			}

			ctx, cancel := signalContext()
			defer cancel()

			session, err := loginREST(ctx)
			if err != nil {
				return err
			}
			defer session.Logout(context.Background())

			feedback(append(loginFeedback(),
				"Zone script, -cli:   "+cliFile,
				fmt.Sprintf("FID, -fid:           %d", fid),
				fmt.Sprintf("Test mode, -t:       %t", test),
			)...)

			applier := zone.NewApplier(session, fid)
			applier.Test = test
			applier.Force = force

			results, applyErr := applier.Apply(ctx, ops)
			for _, res := range results {
				state := "OK"
				switch {
				case res.Fail:
					state = "FAIL: " + res.Reason
				case !res.Changed:
					state = "no change"
				case test:
					state = "would change"
				}
				feedback(fmt.Sprintf("line %d, %s: %s", res.Line, res.Cmd, state))
			}
			return applyErr
		},
	}
	cmd.Flags().StringVar(&cliFile, "cli", "", `Required. File of zoning CLI commands. ".txt" is automatically appended when the name has no extension.`)
	cmd.Flags().IntVar(&fid, "fid", 0, "Required. Fabric ID of the logical switch whose zoning is modified.")
	cmd.Flags().BoolVar(&test, "t", false, "Validate the script against the switch without making any changes.")
	cmd.Flags().BoolVar(&force, "f", false, "Overwrite existing objects on create conflicts.")
	return cmd
}

func newZoneEnableCmd() *cobra.Command {
	var (
		cfgName string
		fid     int
	)
	cmd := &cobra.Command{
		Use:   "zoneenable",
		Short: "Enable a zone configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireLogin(); err != nil {
				return err
			}
			if cfgName == "" && len(args) > 0 {
				cfgName = args[0]
			}
			if cfgName == "" {
				return inputErrorf("missing required configuration name: -c")
			}
			if fid < 1 || fid > 128 {
				return inputErrorf("FID %d out of range 1-128", fid)
			}

			ctx, cancel := signalContext()
			defer cancel()

			session, err := loginREST(ctx)
			if err != nil {
				return err
			}
			defer session.Logout(context.Background())

			feedback(append(loginFeedback(),
				"Configuration, -c:   "+cfgName,
				fmt.Sprintf("FID, -fid:           %d", fid),
			)...)

			if err := zone.NewApplier(session, fid).EnableCfg(ctx, cfgName); err != nil {
				return err
			}
			feedback("Zone configuration " + cfgName + " enabled.")
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgName, "c", "", "Required. Name of the zone configuration to enable.")
	cmd.Flags().IntVar(&fid, "fid", 0, "Required. Fabric ID of the logical switch.")
	return cmd
}
