package cmd

import (
	"github.com/refptr/refptr/std/utils"
	"github.com/refptr/refptr/tools"
	"github.com/spf13/cobra"
)

const banner = `
            __       _
  _ __ ___ / _|_ __ | |_ _ __
 | '__/ _ \ |_| '_ \| __| '__|
 | | |  __/  _| |_) | |_| |
 |_|  \___|_| | .__/ \__|_|
              |_|

Reference-counted handle runtime
`

var CmdRefptr = &cobra.Command{
	Use:     "refptr",
	Short:   "Reference-counted handle runtime",
	Long:    banner[1:],
	Version: utils.Version,
}

func init() {
	cobra.EnableCommandSorting = false
	CmdRefptr.Root().CompletionOptions.HiddenDefaultCmd = true
	CmdRefptr.PersistentFlags().BoolP("help", "h", false, "Print usage")
	CmdRefptr.PersistentFlags().Lookup("help").Hidden = true

	CmdRefptr.AddGroup(&cobra.Group{ID: "tools", Title: "Diagnostics"})
	CmdRefptr.AddCommand(tools.CmdStress())
	CmdRefptr.AddCommand(tools.CmdDemo())
}
