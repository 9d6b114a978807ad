package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roscore",
	Short: "roscore-go is a standalone ROS master and parameter server",
	Long: `roscore-go implements the ROS master API (topic, service, and node
registration) and the ROS parameter API over XML-RPC, matching the wire
behavior of the reference roscore without depending on a ROS install.`,
	SilenceUsage: true,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
