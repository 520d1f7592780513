package main

import "github.com/SAP-F-2025/assessment-session-service/internal/cli"

func main() {
	cli.Execute()
}
