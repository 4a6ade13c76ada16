package main

import "github.com/felixgeelhaar/ragchat/cmd/ragchat/cli"

func main() {
	cli.Execute()
}
