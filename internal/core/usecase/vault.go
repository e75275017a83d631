package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// VaultService joins the sealer with the encrypted document store.
type VaultService struct {
	sealer ports.DocumentSealer
	store  ports.EncryptedDocumentStore
}

func NewVaultService(sealer ports.DocumentSealer, store ports.EncryptedDocumentStore) *VaultService {
	return &VaultService{sealer: sealer, store: store}
}

func (s *VaultService) StoreEncryptedDocument(ctx context.Context, id string, raw []byte, meta domain.SealMetadata) error {
	enc, err := s.sealer.Seal(raw, meta)
	if err != nil {
		return fmt.Errorf("seal document: %w", err)
	}
	if err := s.store.SaveEncrypted(ctx, id, enc); err != nil {
		return fmt.Errorf("save encrypted document: %w", err)
	}
	return nil
}

func (s *VaultService) GetDecryptedContent(ctx context.Context, id string) (*domain.DecryptedContent, error) {
	enc, err := s.store.GetEncrypted(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load encrypted document: %w", err)
	}
	content, err := s.sealer.Open(*enc)
	if err != nil {
		return nil, fmt.Errorf("open encrypted document: %w", err)
	}
	return content, nil
}

func (s *VaultService) VerifyIntegrity(ctx context.Context, id string) (bool, error) {
	enc, err := s.store.GetEncrypted(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load encrypted document: %w", err)
	}
	ok, err := s.sealer.Verify(*enc)
	if err != nil {
		return false, fmt.Errorf("verify encrypted document: %w", err)
	}
	return ok, nil
}
