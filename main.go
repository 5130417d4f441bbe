package main

import "github.com/nextlevelbuilder/radar/cmd"

func main() {
	cmd.Execute()
}
