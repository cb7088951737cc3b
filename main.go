package main

import "github.com/chriserin/bddgen/cmd"

func main() {
	cmd.Execute()
}
