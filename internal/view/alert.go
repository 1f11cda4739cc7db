package view

import (
	"github.com/gen2brain/beeep"
)

// notify is replaced in tests.
var notify = beeep.Notify

// Alert raises a desktop notification.
func Alert(title, msg string) error {
	return notify(title, msg, "")
}
