package main

import "github.com/deagent-io/deagent/cmd"

func main() {
	cmd.Execute()
}
