package main

import (
	"log"

	"github.com/arverne/gitscope/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitscope: %v", err)
	}
}
