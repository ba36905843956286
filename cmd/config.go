package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	Cs "github.com/maroda/cubeview/server"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and write cubeview configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the current settings as a TOML config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ".cubeview.toml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s exists, use --force to overwrite", path)
		}

		s, err := LoadSettings()
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := WriteSettings(f, s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged settings as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := LoadSettings()
		if err != nil {
			return err
		}
		return WriteSettings(cmd.OutOrStdout(), s)
	},
}

var configCubeCmd = &cobra.Command{
	Use:   "cube",
	Short: "Print the built-in cube configuration as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return WriteCubeConfig(cmd.OutOrStdout(), Cs.DefaultConfigFile())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <cube-config.json>",
	Short: "Check a cube configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadCubeConfig(args[0])
		if err != nil {
			return err
		}
		cube, err := Cs.NewCube(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d cells at %s\n",
			args[0], len(cube.Project()), cube.CurrentLevelDescription())
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configCubeCmd)
}

// WriteSettings encodes s as TOML
func WriteSettings(w io.Writer, s Settings) error {
	enc := toml.NewEncoder(w)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return nil
}

// WriteCubeConfig encodes a cube configuration in the format LoadConfig reads
func WriteCubeConfig(w io.Writer, cf *Cs.ConfigFile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cf); err != nil {
		return fmt.Errorf("encoding cube config: %w", err)
	}
	return nil
}
