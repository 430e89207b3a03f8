package main

import "github.com/vietddude/rrol/internal/cli"

func main() {
	cli.Execute()
}
