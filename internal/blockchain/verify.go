package blockchain

import (
	"github.com/pkg/errors"

	"remoteq/internal/security"
)

// VerifyChain recomputes every block hash, checks the links, the indexes and
// the signatures, and reports the first inconsistency.
func (l *Ledger) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, b := range l.blocks {
		h, err := b.ComputeHash()
		if err != nil {
			return errors.Wrapf(err, "compute hash for index %d", b.Index)
		}
		if h != b.Hash {
			return errors.Errorf("hash mismatch at index %d", b.Index)
		}
		if i > 0 && b.PrevHash != l.blocks[i-1].Hash {
			return errors.Errorf("prev hash mismatch at index %d", b.Index)
		}
		if b.Index != i {
			return errors.Errorf("index mismatch: expected %d got %d", i, b.Index)
		}
		if b.Signature == "" {
			return errors.Errorf("missing signature at index %d", b.Index)
		}
		ok, err := security.VerifySignatureFromHex(b.PubKey, []byte(b.Hash), b.Signature)
		if err != nil {
			return errors.Wrapf(err, "signature at index %d", b.Index)
		}
		if !ok {
			return errors.Errorf("bad signature at index %d", b.Index)
		}
	}
	return nil
}
