package main

import "github.com/forPelevin/shortsbot/internal/cli"

func main() {
	cli.Main()
}
