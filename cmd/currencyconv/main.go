package main

import "currencyconv/internal/cli"

func main() {
	cli.Execute()
}
