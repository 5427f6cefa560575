package main

import (
	"aemo-price-feed/internal/cli"
)

func main() {
	cli.Execute()
}
