package main

import (
	"fmt"
	"os"

	"github.com/kasku/chat-gateway/internal/util"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-operator-key.go <key>\n")
		os.Exit(1)
	}

	hash, err := util.HashOperatorKey(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
	fmt.Fprintln(os.Stderr, "Set OPERATOR_KEY_HASH to the value above.")
}
