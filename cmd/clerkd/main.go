package main

import "github.com/pkruk/accident-clerk/internal/cli"

func main() {
	cli.Execute()
}
