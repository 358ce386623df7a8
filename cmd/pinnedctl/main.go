package main

import "pinned/cmd/pinnedctl/cmd"

func main() {
	cmd.Execute()
}
