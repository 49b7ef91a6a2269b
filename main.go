// Package main is the entry point for the duners CLI.
package main

import (
	"duners/cli/cmd"
)

func main() {
	cmd.Execute()
}
