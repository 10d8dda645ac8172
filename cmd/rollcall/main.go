package main

import "github.com/mcoot/rollcall/internal/cli"

func main() {
	cli.Execute()
}
