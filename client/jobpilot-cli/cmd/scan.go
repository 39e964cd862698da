package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/pkg/taskpoll"
)

var (
	scanMax      int
	scanResearch bool
	scanNoWait   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the inbox for new recruiter emails",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()

		handle, err := client.ScanRecruiterEmails(context.Background(), models.ScanRequest{
			MaxMessages: scanMax,
			DoResearch:  scanResearch,
		})
		if err != nil {
			log.Fatalf("Error starting inbox scan: %v", err)
		}
		fmt.Printf("Scan task %s submitted\n", handle.TaskID)

		if scanNoWait {
			return
		}
		watchTask(client, handle.TaskID, taskpoll.ScanKey, models.TaskKindScanEmails)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanMax, "max", 0, "maximum number of emails to check (0 uses the server default)")
	scanCmd.Flags().BoolVar(&scanResearch, "research", false, "automatically research newly discovered companies")
	scanCmd.Flags().BoolVar(&scanNoWait, "no-wait", false, "submit the task without waiting for the result")
}
