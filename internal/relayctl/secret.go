package relayctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errEmptySecret = errors.New("admin secret is required")

// resolveSecret picks the flag value, then the environment, and finally
// prompts on the terminal without echo.
func resolveSecret(flagValue string, w io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if s := os.Getenv(common.AdminSecretEnv); s != "" {
		return s, nil
	}
	return promptSecret(w)
}

func promptSecret(w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, "Admin secret: "); err != nil {
		return "", err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	defer common.WipeBytes(b)

	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", errEmptySecret
	}
	return s, nil
}
