// Package main is the entry point for the paratest CLI.
package main

import "paratest.dev/pkg/paratest/cmd"

func main() {
	cmd.Execute()
}
