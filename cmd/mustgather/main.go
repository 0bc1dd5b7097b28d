package main

import "github.com/replicatedhq/mustgather/cmd/mustgather/cli"

func main() {
	cli.InitAndExecute()
}
