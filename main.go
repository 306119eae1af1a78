package main

import "github.com/Tiliavir/trivial-study-tracker/cmd"

func main() {
	cmd.Execute()
}
