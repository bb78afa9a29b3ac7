package main

import "github.com/sw33tLie/ghrenew/cmd"

func main() {
	cmd.Execute()
}
