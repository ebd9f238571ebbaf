package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost          = 10
	minPassphraseLength = 4
	maxPassphraseLength = 72 // bcrypt ignores bytes past 72
)

var (
	ErrPassphraseLength = errors.New("passphrase must be between 4 and 72 characters")
	ErrPassphraseWrong  = errors.New("passphrase does not match")
)

// PassphraseService hashes the optional passphrase that guards joining a
// private game.
type PassphraseService struct {
	cost int
}

func NewPassphraseService() *PassphraseService {
	return &PassphraseService{cost: bcryptCost}
}

// Hash validates the length and returns the bcrypt hash.
func (s *PassphraseService) Hash(passphrase string) (string, error) {
	if len(passphrase) < minPassphraseLength || len(passphrase) > maxPassphraseLength {
		return "", ErrPassphraseLength
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(passphrase), s.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Compare returns ErrPassphraseWrong unless passphrase matches hash.
func (s *PassphraseService) Compare(hash, passphrase string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase)); err != nil {
		return ErrPassphraseWrong
	}
	return nil
}
