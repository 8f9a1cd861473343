package main

import "github.com/hmehl/vidfetch/cmd"

func main() {
	cmd.Execute()
}
