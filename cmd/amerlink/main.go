package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/amer-bots/amerlink/cmd/amerlink/internal/serve"
	"github.com/amer-bots/amerlink/cmd/amerlink/internal/version"
)

func NewAmerlinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "amerlink",
		Short:   "amerlink - cross-platform chat bridge",
		Example: "amerlink serve",
	}

	cmd.AddCommand(
		serve.NewServeCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewAmerlinkCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
