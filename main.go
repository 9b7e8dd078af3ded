package main

import "github.com/polyarb/polyarb/cmd"

func main() {
	cmd.Execute()
}
