package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/ferry/internal/config"
	"github.com/steveyegge/ferry/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Show and change ferry settings",
	Long: `Settings come from, in increasing precedence: defaults, ferry.yaml in the
working directory or ~/.config/ferry, FERRY_* environment variables, and flags.
API keys are only read from the environment.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting with its effective value",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(config.AllSettings())
			return
		}
		printConfig(os.Stdout)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting to ferry.yaml",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.SetYamlConfig(args[0], args[1]); err != nil {
			FatalError("%v", err)
		}
		path := config.ConfigFileUsed()
		if path == "" {
			path = config.ConfigFile
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": args[0], "value": args[1], "file": path})
			return
		}
		fmt.Printf("%s Set %s = %s in %s\n", ui.RenderPass(ui.IconPass), args[0], args[1], path)
	},
}

func printConfig(w io.Writer) {
	if used := config.ConfigFileUsed(); used != "" {
		fmt.Fprintln(w, ui.RenderMuted("config file: "+used))
	}
	all := config.AllSettings()
	for _, k := range config.Keys {
		val := fmt.Sprint(all[k.Key])
		if val == "" {
			val = ui.RenderMuted("(unset)")
		}
		fmt.Fprintf(w, "%-26s %s  %s\n", k.Key, val, ui.RenderMuted(k.EnvVar))
	}
}

func init() {
	configCmd.AddCommand(configListCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
