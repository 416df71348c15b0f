package main

import "github.com/jmehdipour/topic-notifier/cmd"

func main() {
	cmd.Execute()
}
