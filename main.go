package main

import "github.com/maroda/cubeview/cmd"

func main() {
	cmd.Execute()
}
