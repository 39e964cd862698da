package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

var tasksLimit int

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List recently submitted background tasks",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		entries, err := client.RecentTasks(context.Background(), tasksLimit)
		if err != nil {
			log.Fatalf("Error listing tasks: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println("No tasks submitted yet.")
			return
		}
		for _, e := range entries {
			fmt.Printf("%s  %-16s %-24s %-9s %s", e.SubmittedAt.Local().Format(time.DateTime),
				e.Kind, orDash(e.Company), e.Status, e.TaskID)
			if e.Error != "" {
				fmt.Printf("  (%s)", e.Error)
			}
			fmt.Println()
		}
	},
}

func init() {
	tasksCmd.Flags().IntVar(&tasksLimit, "limit", 0, "maximum number of tasks to list")
	rootCmd.AddCommand(tasksCmd)
}
