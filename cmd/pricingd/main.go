package main

import "dynamic-pricing/internal/cli"

func main() {
	cli.Execute()
}
