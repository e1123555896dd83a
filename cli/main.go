package main

import "github.com/zmahdi/wasla/cli/cmd"

func main() {
	cmd.Execute()
}
