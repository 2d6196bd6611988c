package main

import "github.com/breviobot/breviobot-service/cmd"

func main() {
	cmd.Execute()
}
