package main

import "cruise-price-tracker/internal/cli"

func main() {
	cli.Execute()
}
