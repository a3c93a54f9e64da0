package main

import "github.com/felixgeelhaar/mediabot/cmd/mediabot/cli"

func main() {
	cli.Execute()
}
