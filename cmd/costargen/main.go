package main

import "github.com/costargen/costargen/internal/cli"

func main() {
	cli.Execute()
}
