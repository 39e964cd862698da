package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	jphttp "JobPilot/backend/go/pkg/http"
	"JobPilot/backend/go/pkg/models"
	"JobPilot/backend/go/pkg/taskpoll"
	"JobPilot/backend/go/pkg/trackerclient"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "jobpilot-cli",
	Short: "A CLI client for the JobPilot recruiting pipeline tracker",
	Long: `A command-line interface for tracking recruiting conversations:
list companies, trigger research and reply drafts, scan the inbox for
new recruiter emails, and send replies.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI: %s", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "tracker service base URL")
}

func defaultServer() string {
	if v := os.Getenv("JOBPILOT_SERVER"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

// newClient builds the tracker API client used by every command.
func newClient() *trackerclient.Client {
	return trackerclient.New(serverURL, jphttp.NewClient(nil))
}

// taskFetcher adapts the API client to the poller.
type taskFetcher struct {
	client *trackerclient.Client
}

func (f *taskFetcher) FetchTask(ctx context.Context, taskID string) (*taskpoll.Snapshot, error) {
	snap, err := f.client.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &taskpoll.Snapshot{TaskID: snap.TaskID, Status: snap.Status, Error: snap.Error}, nil
}

// cliHandler prints the poller's verdicts and pulls fresh state from the
// tracker once a task finishes. Status transitions are echoed as they
// happen so long-running tasks show progress.
type cliHandler struct {
	client *trackerclient.Client

	mu   sync.Mutex
	seen map[string]models.TaskStatus
}

func (h *cliHandler) UpdateStatus(key string, kind models.TaskKind, status models.TaskStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.seen == nil {
		h.seen = make(map[string]models.TaskStatus)
	}
	id := string(kind) + "/" + key
	if h.seen[id] == status {
		return
	}
	h.seen[id] = status
	if key == taskpoll.ScanKey {
		fmt.Printf("inbox scan: %s\n", status)
		return
	}
	fmt.Printf("%s task for %s: %s\n", kind, key, status)
}

func (h *cliHandler) RecordError(key string, kind models.TaskKind, message string) {
	if key == taskpoll.ScanKey {
		fmt.Printf("inbox scan failed: %s\n", message)
		return
	}
	fmt.Printf("%s task for %s failed: %s\n", kind, key, message)
}

func (h *cliHandler) Reconcile(ctx context.Context, key string, kind models.TaskKind) error {
	if kind == models.TaskKindScanEmails {
		companies, err := h.client.ListCompanies(ctx)
		if err != nil {
			return err
		}
		printCompanyList(companies)
		return nil
	}

	company, err := h.client.GetCompany(ctx, key)
	if err != nil {
		return err
	}
	printCompany(company)
	return nil
}

var (
	pollerOnce sync.Once
	poller     *taskpoll.Poller
)

// watchTask polls the task until it terminates, then prints fresh state.
// All commands share one poller so a key already being watched is not
// watched twice.
func watchTask(client *trackerclient.Client, taskID, key string, kind models.TaskKind) {
	pollerOnce.Do(func() {
		poller = taskpoll.New(&taskFetcher{client: client}, &cliHandler{client: client})
	})
	if err := poller.Watch(context.Background(), taskID, key, kind); err != nil {
		log.Fatalf("Error watching task %s: %v", taskID, err)
	}
}

func printCompany(c *models.Company) {
	fmt.Printf("%s\n", c.Name)
	if c.ResearchStatus != "" {
		fmt.Printf("  research: %s", c.ResearchStatus)
		if c.ResearchError != "" {
			fmt.Printf(" (%s)", c.ResearchError)
		}
		fmt.Println()
	}
	if c.MessageStatus != "" {
		fmt.Printf("  reply:    %s", c.MessageStatus)
		if c.MessageError != "" {
			fmt.Printf(" (%s)", c.MessageError)
		}
		fmt.Println()
	}
	if c.RecruiterMessage != "" {
		fmt.Printf("  recruiter message:\n%s\n", indent(c.RecruiterMessage))
	}
	if c.ReplyMessage != "" {
		fmt.Printf("  reply draft:\n%s\n", indent(c.ReplyMessage))
	}
	if len(c.Details) > 0 {
		fmt.Printf("  details: %s\n", string(c.Details))
	}
	if c.SentAt != nil {
		fmt.Printf("  sent at: %s\n", c.SentAt.Format(time.RFC3339))
	}
	if c.Archived {
		fmt.Println("  archived")
	}
}

func printCompanyList(companies []models.Company) {
	if len(companies) == 0 {
		fmt.Println("No companies tracked yet.")
		return
	}
	for _, c := range companies {
		marker := " "
		if c.Archived {
			marker = "A"
		}
		fmt.Printf("%s %-30s research=%-9s reply=%-9s\n", marker, c.Name,
			orDash(string(c.ResearchStatus)), orDash(string(c.MessageStatus)))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func indent(s string) string {
	out := "    "
	for _, r := range s {
		out += string(r)
		if r == '\n' {
			out += "    "
		}
	}
	return out
}
