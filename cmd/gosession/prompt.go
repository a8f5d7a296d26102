package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

var errNotInteractive = errors.New("stdin is not a terminal; pass the value as a flag")

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// promptCredentials asks for whichever of username and password is empty.
func promptCredentials(ctx context.Context, username, password *string) error {
	var fields []huh.Field
	if *username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username or email").
			Value(username).
			Validate(required("username")))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password).
			Validate(required("password")))
	}
	if len(fields) == 0 {
		return nil
	}
	if !stdinIsTerminal() {
		return errNotInteractive
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// promptOTP asks for the emailed verification code.
func promptOTP(ctx context.Context, maskedEmail string) (string, error) {
	if !stdinIsTerminal() {
		return "", errNotInteractive
	}
	var code string
	input := huh.NewInput().
		Title("Verification code").
		Description("Sent to " + maskedEmail).
		CharLimit(8).
		Value(&code).
		Validate(required("code"))
	if err := huh.NewForm(huh.NewGroup(input)).RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(code), nil
}

// confirm displays a yes/no prompt. Non-interactive runs take the default.
func confirm(ctx context.Context, message string, def bool) (bool, error) {
	if !stdinIsTerminal() {
		return def, nil
	}
	ok := def
	c := huh.NewConfirm().Title(message).Value(&ok)
	if err := huh.NewForm(huh.NewGroup(c)).RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return ok, nil
}
