package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"
)

const keyFileSection = "cloudflare"

// ReadKeyFile reads Cloudflare credentials from path.
//
// The file is either INI, with api_token or email and api_key
// in a [cloudflare] section or at the top level,
// or a single line holding an API token.
// It must not be readable by anyone but its owner.
func ReadKeyFile(path string) (Cloudflare, error) {
	if err := verifyPermissions(path); err != nil {
		return Cloudflare{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Cloudflare{}, fmt.Errorf("error reading key: %w", err)
	}

	if !bytes.ContainsRune(data, '=') {
		line, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()
		token := strings.TrimSpace(string(line))
		if token == "" {
			return Cloudflare{}, fmt.Errorf("key file %q is empty", path)
		}
		return Cloudflare{APIToken: token}, nil
	}

	f, err := ini.Load(data)
	if err != nil {
		return Cloudflare{}, fmt.Errorf("error parsing key file %q: %w", path, err)
	}
	sec := f.Section("")
	if f.HasSection(keyFileSection) {
		sec = f.Section(keyFileSection)
	}
	creds := Cloudflare{
		APIToken: sec.Key("api_token").String(),
		Email:    sec.Key("email").String(),
		APIKey:   sec.Key("api_key").String(),
	}
	if !creds.Valid() {
		return Cloudflare{}, fmt.Errorf("key file %q needs api_token, or email and api_key", path)
	}
	return creds, nil
}

// WriteKeyFile creates a new key file at path holding creds.
// It fails if the file already exists.
func WriteKeyFile(path string, creds Cloudflare) error {
	f := ini.Empty()
	sec, err := f.NewSection(keyFileSection)
	if err != nil {
		return err
	}
	for _, kv := range [][2]string{
		{"api_token", creds.APIToken},
		{"email", creds.Email},
		{"api_key", creds.APIKey},
	} {
		if kv[1] == "" {
			continue
		}
		if _, err := sec.NewKey(kv[0], kv[1]); err != nil {
			return err
		}
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	if _, err := f.WriteTo(out); err != nil {
		out.Close()
		return fmt.Errorf("error writing %q: %w", path, err)
	}
	return out.Close()
}

// ErrKeyFilePermissions is wrapped by errors about key files that others can read.
var ErrKeyFilePermissions = errors.New(`expected file permissions "-rw-------"`)

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}
	if runtime.GOOS == "windows" {
		return nil
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for %q: %w; found %q", path, ErrKeyFilePermissions, fs.FileMode(perms))
	}
	return nil
}
