package main

import (
	"fmt"
	"os"

	"github.com/handypro/marketplace-server/internal/util"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/hash-secret.go <secret>\n")
		os.Exit(1)
	}

	hash, err := util.HashSecret(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
