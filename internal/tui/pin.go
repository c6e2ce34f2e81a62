package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"golang.org/x/crypto/bcrypt"

	"github.com/julianstephens/tally/internal/constants"
)

const maxPINAttempts = 3

// ErrPINRejected is returned after too many wrong PIN entries
var ErrPINRejected = errors.New("incorrect PIN")

type pinSource interface {
	GetString(ctx context.Context, key string, def string) (string, error)
}

// promptPIN is replaced in tests
var promptPIN = func(title string) (string, error) {
	var pin string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&pin).
		Run()
	return pin, err
}

// ValidatePIN accepts 4 to 8 digits
func ValidatePIN(pin string) error {
	if len(pin) < 4 || len(pin) > 8 {
		return errors.New("PIN must be 4 to 8 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return errors.New("PIN must contain only digits")
		}
	}
	return nil
}

// HashPIN returns a salted bcrypt hash suitable for the pin_hash setting
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash PIN: %w", err)
	}
	return string(hash), nil
}

func VerifyPIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// Unlock gates the UI behind the stored PIN, if one is set. Data access
// through the CLI is not gated.
func Unlock(ctx context.Context, store pinSource) error {
	hash, err := store.GetString(ctx, constants.SettingPinHash, "")
	if err != nil {
		return fmt.Errorf("failed to read PIN setting: %w", err)
	}
	if hash == "" {
		return nil
	}

	for attempt := 1; attempt <= maxPINAttempts; attempt++ {
		title := "Enter PIN"
		if attempt > 1 {
			title = fmt.Sprintf("Incorrect PIN, try again (%d of %d)", attempt, maxPINAttempts)
		}
		pin, err := promptPIN(title)
		if err != nil {
			return err
		}
		if VerifyPIN(hash, pin) {
			return nil
		}
	}
	return ErrPINRejected
}

// PromptNewPIN asks for a PIN twice and returns it once both entries match
func PromptNewPIN() (string, error) {
	pin, err := promptPIN("New PIN (4-8 digits)")
	if err != nil {
		return "", err
	}
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}
	again, err := promptPIN("Repeat PIN")
	if err != nil {
		return "", err
	}
	if pin != again {
		return "", errors.New("PIN entries do not match")
	}
	return pin, nil
}
