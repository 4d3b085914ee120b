package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(classifyCmd)
}

var classifyCmd = &cobra.Command{
	Use:   "classify URL",
	Short: "Print whether a URL is a video, playlist or channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Println(app.Classifier.Classify(cmd.Context(), args[0]))
		return nil
	},
}
