package main

import "fg/internal/cli"

func main() {
	cli.Execute()
}
