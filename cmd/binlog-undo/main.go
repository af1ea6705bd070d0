package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xuenqlve/binlog-undo/log"
	"github.com/xuenqlve/binlog-undo/undo"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := undo.DefaultConfig()
	configFile := ""
	cmd := &cobra.Command{
		Use:   "binlog-undo",
		Short: "Rewrite a MySQL binlog so that replaying it undoes the logged row changes",
		Long: `binlog-undo reads a row-format binlog file and writes a new binlog whose
transactions, replayed in order, undo the row mutations of the original:
inserts become deletes, deletes become inserts, updates swap their before
and after images, and transactions come out in reverse order. The log must
be written with binlog_row_image=FULL.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				base := undo.DefaultConfig()
				if err := base.LoadFile(configFile); err != nil {
					return err
				}
				mergeUnsetFlags(cmd, &cfg, base)
			}
			if _, err := cfg.Check(); err != nil {
				return err
			}
			log.Init(cfg.LogLevel, cfg.LogPath)
			return run(cfg)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&cfg.Input, "input", "i", cfg.Input, "binlog file to undo")
	flags.StringVarP(&cfg.Output, "output", "o", cfg.Output, "undo binlog file to write (truncated first)")
	flags.Int64VarP(&cfg.StartPos, "start-pos", "p", cfg.StartPos, "byte offset of the first transaction to undo")
	flags.Uint32VarP(&cfg.ServerID, "server-id", "s", cfg.ServerID, "server id stamped on every emitted event (default: keep original)")
	flags.StringVarP(&cfg.MaxEventSize, "max-event-size", "m", cfg.MaxEventSize, "largest event to accept, e.g. 64MB")
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "suppress the per-event scan trace")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info or warn")
	flags.StringVar(&cfg.LogPath, "log-path", cfg.LogPath, "directory for the log file (default: console only)")
	flags.StringVarP(&configFile, "config", "c", "", "TOML config file; flags override its values")
	return cmd
}

// mergeUnsetFlags keeps flag values the user set explicitly and takes
// everything else from the config file.
func mergeUnsetFlags(cmd *cobra.Command, cfg *undo.Config, base undo.Config) {
	f := cmd.Flags()
	if !f.Changed("input") {
		cfg.Input = base.Input
	}
	if !f.Changed("output") {
		cfg.Output = base.Output
	}
	if !f.Changed("start-pos") {
		cfg.StartPos = base.StartPos
	}
	if !f.Changed("server-id") {
		cfg.ServerID = base.ServerID
	}
	if !f.Changed("max-event-size") {
		cfg.MaxEventSize = base.MaxEventSize
	}
	if !f.Changed("quiet") {
		cfg.Quiet = base.Quiet
	}
	if !f.Changed("log-level") {
		cfg.LogLevel = base.LogLevel
	}
	if !f.Changed("log-path") {
		cfg.LogPath = base.LogPath
	}
}

func run(cfg undo.Config) error {
	in, err := os.Open(cfg.Input)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	sizeMB, err := cfg.MaxEventSizeMB()
	if err != nil {
		return err
	}
	u := undo.New(in, out, sizeMB)
	u.SetServerID(cfg.ServerID)
	u.SetQuiet(cfg.Quiet)
	if err = u.Scan(cfg.StartPos); err != nil {
		return err
	}
	return u.Output()
}
