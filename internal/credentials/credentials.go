// Package credentials supplies provider account details and prompts for
// one-time codes.
package credentials

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

var ErrInterrupted = errors.New("prompt interrupted")

type Credentials struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

func (c Credentials) complete() bool {
	return c.Username != "" && c.Password != ""
}

// Source looks up the account to use for a provider.
type Source interface {
	Credentials(providerID string) (Credentials, bool)
}

// Prompter asks the user for a secret without echoing it.
type Prompter interface {
	PromptSecret(label string) (string, error)
}

// Static serves credentials from configuration. A per-provider entry wins
// over the default account.
type Static struct {
	Default     Credentials
	PerProvider map[string]Credentials
}

func (s Static) Credentials(providerID string) (Credentials, bool) {
	if c, ok := s.PerProvider[providerID]; ok && c.complete() {
		return c, true
	}
	if s.Default.complete() {
		return s.Default, true
	}
	return Credentials{}, false
}

type PromptUI struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
}

func handlePromptError(err error) error {
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return ErrInterrupted
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

func (p *PromptUI) PromptSecret(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:       label,
		Mask:        '*',
		HideEntered: true,
		Stdin:       p.Stdin,
		Stdout:      p.Stdout,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("input is required")
			}
			return nil
		},
	}
	result, err := prompt.Run()
	if err := handlePromptError(err); err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

// NoPrompt fails every prompt; used where no terminal is attached.
type NoPrompt struct{}

func (NoPrompt) PromptSecret(label string) (string, error) {
	return "", fmt.Errorf("%s: no terminal available to prompt", label)
}
