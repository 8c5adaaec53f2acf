package main

import "github.com/quire-dev/quire/cmd"

func main() {
	cmd.Execute()
}
