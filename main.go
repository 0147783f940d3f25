package main

import (
	"github.com/chatwire/chatwire/cmd"
)

func main() {
	cmd.Execute()
}
