package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/transport-booking/internal/repository"
)

const maxCodeAttempts = 5

// shortCode returns prefix followed by the first eight hex digits of a
// random UUID, upper-cased.
func shortCode(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(hex[:8])
}

// CodeSource produces human-readable identifiers. Tests swap it for a
// deterministic sequence.
type CodeSource interface {
	Reference() string
	BonusCode() string
	PaymentRef() string
}

type uuidCodes struct{}

func (uuidCodes) Reference() string  { return shortCode("RES-") }
func (uuidCodes) BonusCode() string  { return shortCode("BONUS-") }
func (uuidCodes) PaymentRef() string { return shortCode("PAY-") }

// UUIDCodes is the production CodeSource.
var UUIDCodes CodeSource = uuidCodes{}

// uniqueReference draws references until one is free.
func uniqueReference(ctx context.Context, tx repository.Tx, codes CodeSource) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		ref := codes.Reference()
		taken, err := tx.ReferenceExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !taken {
			return ref, nil
		}
	}
	return "", errors.New("could not allocate a unique reservation reference")
}
