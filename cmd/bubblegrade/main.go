package main

import "github.com/MeKo-Tech/bubblegrade/cmd/bubblegrade/cmd"

func main() {
	cmd.Execute()
}
