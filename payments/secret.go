package payments

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/models"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrUndecryptable = errors.New("secret could not be decrypted")

// SecretBox encrypts settings values with NaCl secretbox. The key is
// derived from the configured passphrase with SHA-256.
type SecretBox struct {
	key [32]byte
}

func NewSecretBox(passphrase string) *SecretBox {
	return &SecretBox{key: sha256.Sum256([]byte(passphrase))}
}

func (b *SecretBox) Encrypt(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *SecretBox) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < nonceSize {
		return "", ErrUndecryptable
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrUndecryptable
	}
	return string(plain), nil
}

type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// StripeKeyStore keeps the Stripe secret key encrypted in settings and
// decodes it on every call.
type StripeKeyStore struct {
	settings SettingsStore
	box      *SecretBox
}

func NewStripeKeyStore(settings SettingsStore, box *SecretBox) *StripeKeyStore {
	return &StripeKeyStore{settings: settings, box: box}
}

func (s *StripeKeyStore) SecretKey(ctx context.Context) (string, error) {
	encoded, err := s.settings.Get(ctx, models.SettingStripeSecretKey)
	if err != nil {
		return "", apperrors.ErrInvalidStripeConfig.Wrap(err)
	}
	key, err := s.box.Decrypt(encoded)
	if err != nil {
		return "", apperrors.ErrInvalidStripeConfig.Wrap(err)
	}
	if !strings.HasPrefix(key, "sk_") {
		return "", apperrors.ErrInvalidStripeConfig
	}
	return key, nil
}

func (s *StripeKeyStore) SetSecretKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, "sk_") {
		return apperrors.Validation("Stripe secret key must start with sk_")
	}
	encoded, err := s.box.Encrypt(key)
	if err != nil {
		return err
	}
	return s.settings.Set(ctx, models.SettingStripeSecretKey, encoded)
}
