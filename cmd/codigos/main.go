package main

import "github.com/codigos/codigos/internal/cli"

func main() {
	cli.Execute()
}
