// Command cli is a small operator tool that mints bearer tokens for an
// identity. The signing secret is read from the terminal without echo so it
// does not end up in shell history.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/docvault/internal/buildinfo"
	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"golang.org/x/term"
)

// readSecret is a test seam for term.ReadPassword.
var readSecret = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	identity := flag.String("identity", "", "caller identity (0x-hex address)")
	validity := flag.Int("t", 15, "token validity in minutes")
	flag.Parse()

	if common.IsZeroIdentity(*identity) {
		log.Fatal("a non-zero -identity is required")
	}

	fmt.Fprint(os.Stderr, "Signing secret: ")
	secret, err := readSecret()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("failed to read secret: %v", err)
	}

	token, err := auth.GenerateToken(*identity, secret, time.Duration(*validity)*time.Minute)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}

	fmt.Println(token)
}
