package main

import "JobPilot/client/jobpilot-cli/cmd"

func main() {
	cmd.Execute()
}
