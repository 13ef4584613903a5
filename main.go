// Package main is the entry point for the trellis CLI.
package main

import "trellis.dev/pkg/trellis/cmd"

func main() {
	cmd.Execute()
}
