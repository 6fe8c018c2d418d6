package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/leafsii/post-api/internal/session"
)

// Prints a POSTS_SESSION_USERS entry for the given user. The password is
// read from stdin.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: passwd USERNAME < password")
		os.Exit(2)
	}
	name := os.Args[1]
	if strings.ContainsAny(name, ":,") {
		fmt.Fprintln(os.Stderr, "username must not contain ':' or ','")
		os.Exit(2)
	}

	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && password == "" {
		fmt.Fprintf(os.Stderr, "Failed to read password: %v\n", err)
		os.Exit(1)
	}
	password = strings.TrimRight(password, "\r\n")

	hash, err := session.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s:%s\n", name, hash)
}
