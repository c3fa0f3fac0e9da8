// Package cli is the client command line: one process is one tab.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/iocli"
)

// Passphrases are the non-environment sources of the storage passphrase.
type Passphrases struct {
	FromFile string
	Prompt   bool // Prompt спросить в терминале, если другие источники пусты
}

// Cli runs commands against one opened App.
type Cli struct {
	io  iocli.IO
	app *App
}

// New creates a Cli over app.
func New(io iocli.IO, app *App) *Cli {
	return &Cli{io: io, app: app}
}

// resolvePassphrase returns the passphrase with priority:
// 1. configured value (flag or OFFLINEKIT_PASSPHRASE)
// 2. file from --passphrase-file
// 3. interactive prompt, when requested
// An empty result means the durable tier is not encrypted.
func resolvePassphrase(stdio iocli.IO, configured string, p Passphrases) (string, error) {
	if configured != "" {
		return configured, nil
	}

	if p.FromFile != "" {
		content, err := os.ReadFile(p.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase file: %w", err)
		}
		// Убираем trailing newline/whitespace
		passphrase := strings.TrimSpace(string(content))
		if passphrase == "" {
			return "", fmt.Errorf("passphrase file is empty")
		}
		return passphrase, nil
	}

	if !p.Prompt {
		return "", nil
	}

	passphrase, err := stdio.ReadPassword("Storage passphrase: ")
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if passphrase == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	return passphrase, nil
}
