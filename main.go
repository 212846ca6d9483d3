package main

import "github.com/halcyondev/notchstat/cmd"

func main() {
	cmd.Execute()
}
