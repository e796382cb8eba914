package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// ForceEnvVar skips every confirmation prompt, for scripted use.
const ForceEnvVar = "B2B_FORCE"

// confirmConvert guards the destructive paths of a conversion: mutating
// the source in place, and overwriting an already existing target file.
func confirmConvert(path, target string, inPlace, force bool) error {
	if force || os.Getenv(ForceEnvVar) != "" {
		return nil
	}

	if inPlace {
		ok, err := confirm(fmt.Sprintf("convert %s in place? An interruption will corrupt it", path))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted")
		}
	}

	if target != path {
		if _, err := os.Stat(target); err == nil {
			ok, err := confirm(fmt.Sprintf("overwrite existing %s?", target))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("aborted")
			}
		}
	}
	return nil
}

// confirm asks on stderr and reads the answer from the terminal. When
// stdin is piped there is nobody to ask, so the caller must have opted in
// through --force or the environment.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return false, fmt.Errorf("cannot confirm: stdin is not a terminal (use --force or set %s)", ForceEnvVar)
	}

	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
