// Package main is the entry point for the p4calc client.
package main

import (
	"os"

	"firestige.xyz/p4calc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
