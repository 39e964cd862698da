package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"JobPilot/backend/go/pkg/models"
)

var replyNoWait bool

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Draft, edit and send replies to recruiters",
}

var generateCmd = &cobra.Command{
	Use:   "generate [company]",
	Short: "Draft a reply to the recruiter with the LLM",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := args[0]
		client := newClient()

		handle, err := client.GenerateReply(context.Background(), name)
		if err != nil {
			log.Fatalf("Error starting reply generation: %v", err)
		}
		fmt.Printf("Reply task %s submitted for %s\n", handle.TaskID, name)

		if replyNoWait {
			return
		}
		watchTask(client, handle.TaskID, name, models.TaskKindMessage)
	},
}

var setCmd = &cobra.Command{
	Use:   "set [company] [message]",
	Short: "Overwrite the reply draft by hand",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		company, err := client.UpdateReply(context.Background(), args[0], args[1])
		if err != nil {
			log.Fatalf("Error updating reply: %v", err)
		}
		printCompany(company)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send [company]",
	Short: "Send the drafted reply and archive the conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		company, err := client.SendAndArchive(context.Background(), args[0])
		if err != nil {
			log.Fatalf("Error sending reply: %v", err)
		}
		fmt.Printf("Reply sent, %s archived.\n", company.Name)
	},
}

func init() {
	rootCmd.AddCommand(replyCmd)
	replyCmd.AddCommand(generateCmd)
	replyCmd.AddCommand(setCmd)
	replyCmd.AddCommand(sendCmd)

	generateCmd.Flags().BoolVar(&replyNoWait, "no-wait", false, "submit the task without waiting for the result")
}
