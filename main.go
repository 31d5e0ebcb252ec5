package main

import "dualbot/cmd"

func main() {
	cmd.Execute()
}
