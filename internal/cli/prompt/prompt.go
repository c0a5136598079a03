// Package prompt provides interactive terminal prompts for the console.
package prompt

import (
	"errors"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// wrapError converts promptui errors into our error types.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrAborted
	}
	return err
}

// SelectString prompts the user to select from a list of strings.
func SelectString(label string, items []string) (string, error) {
	sel := promptui.Select{
		Label: label,
		Items: items,
		Size:  10,
	}

	_, result, err := sel.Run()
	return result, wrapError(err)
}

// Confirm prompts the user for yes/no confirmation.
func Confirm(label string, defaultYes bool) (bool, error) {
	suffix := "y/N"
	if defaultYes {
		suffix = "Y/n"
	}

	p := promptui.Prompt{
		Label:     label + " [" + suffix + "]",
		IsConfirm: true,
	}

	_, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return false, ErrAborted
		}
		// promptui reports "n" as ErrAbort
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return defaultYes, nil
	}
	return true, nil
}
