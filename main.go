package main

import "github.com/derickschaefer/athmon/cmd"

func main() {
	cmd.Execute()
}
