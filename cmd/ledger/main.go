package main

import "github.com/systemshift/ledger/internal/cli"

func main() {
	cli.Execute()
}
