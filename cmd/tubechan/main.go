package main

import "github.com/kcaldas/tubechan/cmd/cli"

func main() {
	cli.Execute()
}
