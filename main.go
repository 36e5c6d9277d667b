// Package main is the entry point for the lunacov CLI.
package main

import "lunacov.dev/pkg/lunacov/cmd"

func main() {
	cmd.Execute()
}
