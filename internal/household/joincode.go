package household

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/model"
)

// MaxJoinCodeAttempts bounds how many random codes are tried before giving up.
const MaxJoinCodeAttempts = 10

func generateCode() (string, error) {
	// Range: 100000 to 999999 (900000 values)
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// uniqueJoinCode draws codes until one is unused by any household.
func (m *Manager) uniqueJoinCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= MaxJoinCodeAttempts; attempt++ {
		code, err := m.newCode()
		if err != nil {
			return "", err
		}
		existing, err := m.docs.Query(ctx, model.CollHouseholds, docstore.Eq("joinCode", code))
		if err != nil {
			return "", fmt.Errorf("check join code: %w", err)
		}
		if len(existing) == 0 {
			return code, nil
		}
		m.logger.Debug("join code collision", "attempt", attempt)
	}
	return "", ErrJoinCodeExhausted
}
