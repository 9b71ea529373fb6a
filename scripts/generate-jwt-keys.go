// Generates an ECDSA P-256 keypair for JWT signing and prints it in the
// formats the server accepts via JWT_SECRET.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

func main() {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		fatal("generate key: %v", err)
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		fatal("marshal private key: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: der,
	})

	fmt.Println("ECDSA P-256 signing key generated.")
	fmt.Println()
	fmt.Println("Inline .env form (newlines escaped):")
	fmt.Printf("JWT_SECRET=%s\n", strings.ReplaceAll(string(pemBytes), "\n", "\\n"))

	if err := os.WriteFile("jwt-private-key.pem", pemBytes, 0600); err != nil {
		fatal("write key file: %v", err)
	}
	fmt.Println()
	fmt.Println("Also written to jwt-private-key.pem; file form:")
	fmt.Println("JWT_SECRET=$(cat jwt-private-key.pem)")
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
