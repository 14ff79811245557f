package commands

import (
	"github.com/mosaicnetworks/crosswalk/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for crosswalk
var RootCmd = &cobra.Command{
	Use:              "crosswalk",
	Short:            "authenticated random walks across communities",
	TraverseChildren: true,
}
