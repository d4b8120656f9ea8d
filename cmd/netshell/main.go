package main

import "github.com/ppiankov/netshell/internal/cli"

func main() {
	cli.Execute()
}
