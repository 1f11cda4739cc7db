package view

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/loykin/timewarden/internal/schedule"
)

// runConfirm is replaced in tests.
var runConfirm = func(prompt string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}

// Confirm asks a yes/no question on the terminal. An aborted prompt counts
// as no.
func Confirm(prompt string) (bool, error) {
	ok, err := runConfirm(prompt)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// ConfirmDelete asks whether s should be deleted. Prompt errors refuse the
// delete.
func ConfirmDelete(s schedule.Schedule) bool {
	ok, err := Confirm(fmt.Sprintf("Delete schedule %q?", s.Name))
	return err == nil && ok
}
