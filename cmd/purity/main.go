package main

import "github.com/vietddude/purity/internal/cli"

func main() {
	cli.Execute()
}
