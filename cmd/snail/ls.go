package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snailos/snail/loader"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List programs in the bin directory",
	Args:  cobra.NoArgs,
	RunE:  runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	host, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := host.BinDir
	if v, _ := cmd.Flags().GetString("bin"); v != "" {
		dir = v
	}

	paths, err := loader.NewBinFS(os.DirFS(dir), loader.DefaultMount).List()
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
