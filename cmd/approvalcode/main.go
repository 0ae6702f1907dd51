// Command approvalcode generates a manager approval code and prints the
// LEDGER_APPROVAL_CODES entry holding its argon2id hash.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/deposit-ledger/pkg/config"
	"github.com/angelmondragon/deposit-ledger/pkg/security"
)

func main() {
	name := flag.String("name", "", "manager the code belongs to")
	length := flag.Int("length", 8, "digits in a generated code")
	code := flag.String("code", "", "hash this code instead of generating one")
	flag.Parse()

	if strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "missing -name")
		os.Exit(2)
	}
	if strings.ContainsAny(*name, ":;") {
		fmt.Fprintln(os.Stderr, "-name must not contain ':' or ';'")
		os.Exit(2)
	}

	_ = godotenv.Load()
	var params config.PasswordConfig
	if err := envconfig.Process(config.EnvPrefix, &params); err != nil {
		fmt.Fprintf(os.Stderr, "argon2 params: %v\n", err)
		os.Exit(1)
	}

	plain := strings.TrimSpace(*code)
	if plain == "" {
		generated, err := security.GenerateApprovalCode(*length)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate code: %v\n", err)
			os.Exit(1)
		}
		plain = generated
	}

	hash, err := security.HashCode(plain, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash code: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("code:  %s\n", plain)
	fmt.Printf("entry: %s:%s\n", strings.TrimSpace(*name), hash)
}
