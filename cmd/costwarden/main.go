package main

import "github.com/redflaghq/costwarden/cmd/costwarden/commands"

func main() {
	commands.Execute()
}
