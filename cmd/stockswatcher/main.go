package main

import "stocks-watcher/internal/cli"

func main() {
	cli.Execute()
}
