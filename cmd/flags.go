package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// mustGet reads a flag registered in init(). A lookup error means the flag
// was never registered, which is a programming bug, so it panics.
func mustGet[T any](cmd *cobra.Command, name string, get func(*pflag.FlagSet, string) (T, error)) T {
	val, err := get(cmd.Flags(), name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustGet(cmd, name, (*pflag.FlagSet).GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustGet(cmd, name, (*pflag.FlagSet).GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustGet(cmd, name, (*pflag.FlagSet).GetString)
}

// intFlagAtLeast reads an int flag and rejects values below lowest.
// Used for --limit and --face, where -1 means "not chosen" and 0 "all".
func intFlagAtLeast(cmd *cobra.Command, name string, lowest int) (int, error) {
	val := mustGetInt(cmd, name)
	if val < lowest {
		return 0, fmt.Errorf("--%s must be at least %d, got %d", name, lowest, val)
	}
	return val, nil
}
