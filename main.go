package main

import "github.com/KaramelBytes/scoutdeck-cli/cmd"

func main() {
	cmd.Execute()
}
