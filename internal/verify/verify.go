package verify

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/open-edge-platform/cx-fetcher/internal/utils/logger"
)

// SignatureSuffix is appended to an artifact path to locate its detached
// signature.
const SignatureSuffix = ".asc"

// ErrNoTrustedKeys is returned when a keyring holds no entities.
var ErrNoTrustedKeys = errors.New("keyring contains no keys")

// GPGVerifier checks armored detached signatures against a fixed keyring.
type GPGVerifier struct {
	keyring openpgp.EntityList
}

// NewGPGVerifier loads an armored public keyring from keyringPath.
func NewGPGVerifier(keyringPath string) (*GPGVerifier, error) {
	f, err := os.Open(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("reading keyring %s: %w", keyringPath, err)
	}
	return NewVerifier(keyring)
}

// NewVerifier wraps an already loaded keyring.
func NewVerifier(keyring openpgp.EntityList) (*GPGVerifier, error) {
	if len(keyring) == 0 {
		return nil, ErrNoTrustedKeys
	}
	return &GPGVerifier{keyring: keyring}, nil
}

// Verify checks artifactPath against artifactPath+".asc".
func (v *GPGVerifier) Verify(ctx context.Context, id string, artifactPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	artifact, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer artifact.Close()

	sig, err := os.Open(artifactPath + SignatureSuffix)
	if err != nil {
		return fmt.Errorf("opening signature for %s: %w", id, err)
	}
	defer sig.Close()

	signer, err := openpgp.CheckArmoredDetachedSignature(v.keyring, artifact, sig, nil)
	if err != nil {
		return fmt.Errorf("signature check for %s failed: %w", id, err)
	}

	logger.Logger().Debugf("%s signed by key %s", id, signer.PrimaryKey.KeyIdString())
	return nil
}
