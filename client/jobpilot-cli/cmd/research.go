package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"JobPilot/backend/go/pkg/models"
)

var researchNoWait bool

var researchCmd = &cobra.Command{
	Use:   "research [company]",
	Short: "Research a company and score the fit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		client := newClient()

		handle, err := client.StartResearch(context.Background(), name)
		if err != nil {
			log.Fatalf("Error starting research: %v", err)
		}
		fmt.Printf("Research task %s submitted for %s\n", handle.TaskID, name)

		if researchNoWait {
			return
		}
		watchTask(client, handle.TaskID, name, models.TaskKindResearch)
	},
}

func init() {
	rootCmd.AddCommand(researchCmd)
	researchCmd.Flags().BoolVar(&researchNoWait, "no-wait", false, "submit the task without waiting for the result")
}
