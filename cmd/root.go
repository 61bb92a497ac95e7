/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentforge",
	Short: "Provision and register self-hosted build agent hosts",
	Long: `AgentForge provisions cloud virtual machines and registers them as
self-hosted build agents into a named agent pool.

On Azure the agent installer is delivered through the VM run-command
channel; on other clouds the host is bootstrapped over SSH.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
