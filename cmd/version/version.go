// Package version provides the version command.
package version

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hellobirdie/hellobirdie/internal/buildinfo"
)

var nameColor = color.New(color.FgGreen, color.Bold)

// Command creates the version command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := buildinfo.Current()
			out := cmd.OutOrStdout()
			nameColor.Fprint(out, "hellobirdie")
			fmt.Fprintf(out, " %s\n", info)
			fmt.Fprintf(out, "go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
