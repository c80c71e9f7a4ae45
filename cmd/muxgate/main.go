package main

import "github.com/rgoodwin/muxgate/cmd/muxgate/cmd"

func main() {
	cmd.Execute()
}
