package main

import "github.com/mabhi256/jprof/cmd"

func main() {
	cmd.Execute()
}
