// Package main is the single-binary entrypoint for the greenhouse node
// controller.
package main

import "github.com/greenhouse-net/controller/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
