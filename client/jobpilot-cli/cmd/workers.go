package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List the pipeline workers currently online",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		workers, err := client.Workers(context.Background())
		if err != nil {
			log.Fatalf("Error listing workers: %v", err)
		}
		if len(workers) == 0 {
			fmt.Println("No workers registered.")
			return
		}
		for _, w := range workers {
			fmt.Println(w)
		}
	},
}

func init() {
	rootCmd.AddCommand(workersCmd)
}
