package main

import "watch-reward-system/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
