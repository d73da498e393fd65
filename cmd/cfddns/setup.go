package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/Travis-Britz/cfddns/internal/config"
)

var errNotInteractive = errors.New("no credentials configured and stdin is not a terminal; set CLOUDFLARE_API_TOKEN or create a key file")

// runSetup asks for an API token, verifies it and saves it to keyFile.
func runSetup(keyFile string, logger logrus.FieldLogger) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errNotInteractive
	}
	logger.Debug("running setup")
	fmt.Fprintf(os.Stderr, "Enter Cloudflare API Token: \n")
	bytekey, err := term.ReadPassword(fd)
	if err != nil {
		return fmt.Errorf("runSetup: error reading from stdin: %w", err)
	}
	key := strings.TrimSpace(string(bytekey))

	api, err := cloudflare.NewWithAPIToken(key)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Debug("verifying token...")
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}
	logger.Debug("token verified successfully")

	if err := config.WriteKeyFile(keyFile, config.Cloudflare{APIToken: key}); err != nil {
		return err
	}
	logger.Infof("token written to %q", keyFile)
	return nil
}
