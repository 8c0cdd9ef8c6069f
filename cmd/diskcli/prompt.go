package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/sagarc03/diskcli/backend"
)

var errCancelled = errors.New("cancelled")

func required(label string) func(string) error {
	return func(input string) error {
		if input == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

// promptCredentials asks for the storage account's access key pair.
func promptCredentials(ctx context.Context) (backend.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return backend.Credentials{}, err
	}

	accessKeyPrompt := promptui.Prompt{
		Label:    "Access Key",
		Validate: required("access key"),
	}
	accessKey, err := accessKeyPrompt.Run()
	if err != nil {
		return backend.Credentials{}, handlePromptError(err)
	}

	secretKeyPrompt := promptui.Prompt{
		Label:    "Secret Key",
		Mask:     '*',
		Validate: required("secret key"),
	}
	secretKey, err := secretKeyPrompt.Run()
	if err != nil {
		return backend.Credentials{}, handlePromptError(err)
	}

	return backend.Credentials{AccessKey: accessKey, SecretKey: secretKey}, nil
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrEOF) {
		return fmt.Errorf("credential prompt: %w", errCancelled)
	}
	return fmt.Errorf("credential prompt: %w", err)
}
