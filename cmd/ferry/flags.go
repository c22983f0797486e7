package main

import (
	"github.com/spf13/cobra"

	"github.com/steveyegge/ferry/internal/config"
)

type flagBinding struct {
	cmd  *cobra.Command
	flag string
	key  string
}

var flagBindings []flagBinding

// bindConfigFlag makes --flag on cmd override the config key. Bindings are
// applied in PersistentPreRun, after config has been loaded.
func bindConfigFlag(cmd *cobra.Command, flag, key string) {
	flagBindings = append(flagBindings, flagBinding{cmd: cmd, flag: flag, key: key})
}

// applyFlagBindings binds the flags registered for cmd.
func applyFlagBindings(cmd *cobra.Command) {
	for _, b := range flagBindings {
		if b.cmd != cmd {
			continue
		}
		if err := config.BindFlag(b.key, cmd.Flags().Lookup(b.flag)); err != nil {
			FatalError("binding --%s: %v", b.flag, err)
		}
	}
}

// addEnvironmentFlag registers --<role>-environment on cmd.
func addEnvironmentFlag(cmd *cobra.Command, role config.Role) {
	name := string(role) + "-environment"
	cmd.Flags().String(name, "", "Environment id of the "+string(role)+" (overrides "+string(role)+".environment)")
	bindConfigFlag(cmd, name, string(role)+".environment")
}
