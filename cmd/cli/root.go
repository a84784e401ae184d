package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reposync",
	Short: "reposync indexes repositories and answers questions against them",
	Long:  `A command-line interface for registering repositories with reposync and querying them with retrieval-augmented answers.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
}
