package main

import "github.com/dl-alexandre/collsync/internal/cli"

func main() {
	cli.Execute()
}
