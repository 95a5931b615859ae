package main

import "github.com/siphon-data/siphon/cmd"

func main() {
	cmd.Execute()
}
