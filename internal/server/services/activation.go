package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/dbx"
	"github.com/dmitrijs2005/vaultrelay/internal/logging"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
	"github.com/dmitrijs2005/vaultrelay/internal/server/repositories/repomanager"
)

// activationCodeSize is the number of random bytes behind a generated code.
const activationCodeSize = 6

// ActivationService manages single-use activation keys. Claims are
// serialized process-wide and backed by a conditional update, so a key is
// redeemed at most once.
type ActivationService struct {
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	mu          sync.Mutex
	now         func() time.Time
	newCode     func(size int) (string, error)
}

func NewActivationService(m repomanager.RepositoryManager, logger logging.Logger) *ActivationService {
	return &ActivationService{
		repomanager: m,
		logger:      logger.With("module", "activation"),
		now:         time.Now,
		newCode:     common.MakeActivationCode,
	}
}

// Validate reports whether code exists, is active and is unclaimed.
func (s *ActivationService) Validate(ctx context.Context, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	k, err := s.repomanager.ActivationKeys(s.repomanager.Conn()).Get(ctx, code)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return k.Redeemable(), nil
}

// Claim redeems code for vaultID outside of any registration transaction.
func (s *ActivationService) Claim(ctx context.Context, code, vaultID string) error {
	return s.claim(ctx, s.repomanager.Conn(), code, vaultID)
}

// Gate returns a RegistrationGate that claims code within the vault
// creation transaction.
func (s *ActivationService) Gate(code string) RegistrationGate {
	return func(ctx context.Context, tx dbx.DBTX, vaultID string) error {
		return s.claim(ctx, tx, code, vaultID)
	}
}

func (s *ActivationService) claim(ctx context.Context, db dbx.DBTX, code, vaultID string) error {
	if code == "" {
		return common.ErrorInvalidActivationKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repomanager.ActivationKeys(db).Claim(ctx, code, vaultID, s.now()); err != nil {
		return err
	}
	s.logger.Info(ctx, "activation key claimed", "vault_id", vaultID)
	return nil
}

// Add creates an activation key. An empty key gets a random code.
// Duplicates yield common.ErrorAlreadyExists.
func (s *ActivationService) Add(ctx context.Context, key, note string) (*models.ActivationKey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		code, err := s.newCode(activationCodeSize)
		if err != nil {
			return nil, fmt.Errorf("error generating activation code: %w", err)
		}
		key = code
	}

	k := &models.ActivationKey{Key: key, Note: note}
	if err := s.repomanager.ActivationKeys(s.repomanager.Conn()).Create(ctx, k); err != nil {
		return nil, err
	}
	return k, nil
}

func (s *ActivationService) List(ctx context.Context) ([]*models.ActivationKey, error) {
	return s.repomanager.ActivationKeys(s.repomanager.Conn()).List(ctx)
}

// Deactivate disables key; it stays listed but can no longer be claimed.
func (s *ActivationService) Deactivate(ctx context.Context, key string) error {
	return s.repomanager.ActivationKeys(s.repomanager.Conn()).Deactivate(ctx, key)
}
