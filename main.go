package main

import "github.com/wormhole-demo/corebridge/cmd"

func main() {
	cmd.Execute()
}
