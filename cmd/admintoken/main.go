// Command admintoken prints a bcrypt hash for ADMIN_TOKEN_HASH.
package main

import (
	"fmt"
	"os"
	"strings"

	"quizforge/internal/auth"
)

func main() {
	if len(os.Args) != 2 || strings.TrimSpace(os.Args[1]) == "" {
		fmt.Fprintln(os.Stderr, "usage: admintoken <token>")
		os.Exit(2)
	}

	hash, err := auth.HashToken(strings.TrimSpace(os.Args[1]), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
