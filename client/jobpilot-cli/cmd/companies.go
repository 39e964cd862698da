package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var addMessage string

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage tracked companies",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked companies",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		companies, err := client.ListCompanies(context.Background())
		if err != nil {
			log.Fatalf("Error listing companies: %v", err)
		}
		printCompanyList(companies)
	},
}

var showCmd = &cobra.Command{
	Use:   "show [company]",
	Short: "Show one company in detail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		company, err := client.GetCompany(context.Background(), args[0])
		if err != nil {
			log.Fatalf("Error fetching company: %v", err)
		}
		printCompany(company)
	},
}

var addCmd = &cobra.Command{
	Use:   "add [company]",
	Short: "Add a company to the tracker",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient()
		company, err := client.CreateCompany(context.Background(), args[0], addMessage)
		if err != nil {
			log.Fatalf("Error creating company: %v", err)
		}
		fmt.Printf("Added %s\n", company.Name)
	},
}

var importCmd = &cobra.Command{
	Use:   "import [spreadsheet.xlsx]",
	Short: "Import companies from an xlsx spreadsheet",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(args[0])
		if err != nil {
			log.Fatalf("Error opening spreadsheet: %v", err)
		}
		defer f.Close()

		client := newClient()
		result, err := client.ImportCompanies(context.Background(), filepath.Base(args[0]), f)
		if err != nil {
			log.Fatalf("Error importing companies: %v", err)
		}
		fmt.Printf("Imported %d companies, skipped %d already tracked.\n", result.Imported, result.Skipped)
	},
}

func init() {
	rootCmd.AddCommand(companiesCmd)
	companiesCmd.AddCommand(listCmd)
	companiesCmd.AddCommand(showCmd)
	companiesCmd.AddCommand(addCmd)
	companiesCmd.AddCommand(importCmd)

	addCmd.Flags().StringVarP(&addMessage, "message", "m", "", "recruiter message that started the conversation")
}
