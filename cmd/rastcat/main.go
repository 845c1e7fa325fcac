package main

import "github.com/blacktop/go-rastcat/cmd/rastcat/cmd"

func main() {
	cmd.Execute()
}
