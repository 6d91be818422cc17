// Command hashpw prints the bcrypt hash of an operator password for the
// operators list in config.yaml. The password is read from stdin.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/soyapp/soy-backend/pkg/security"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatal().Err(err).Msg("failed to read password from stdin")
	}

	hash, err := security.NewBcryptHasher(security.DefaultCost).Hash(strings.TrimRight(line, "\r\n"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to hash password")
	}
	fmt.Println(hash)
}
