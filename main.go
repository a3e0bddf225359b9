package main

import "github.com/replygate/replygate/cmd"

func main() {
	cmd.Execute()
}
