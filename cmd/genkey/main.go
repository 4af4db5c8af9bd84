package main

import (
	"fmt"
	"os"

	"github.com/Symbiosis-Lab/moss-social/internal/keys"
)

func main() {
	key, err := keys.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "key generation failed: %v\n", err)
		os.Exit(1)
	}

	nsec, err := key.Nsec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding failed: %v\n", err)
		os.Exit(1)
	}
	npub, err := key.Npub()
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Secret key (nsec): %s\n", nsec)
	fmt.Printf("Public key (npub): %s\n", npub)
	fmt.Println()
	fmt.Println("Keep the secret key out of version control; set it as MOSS_NOSTR_KEY.")
}
