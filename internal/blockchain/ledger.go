package blockchain

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Ledger is an append-only, hash-chained record of finished jobs.
// File format: JSON lines, one block per line.
type Ledger struct {
	mu     sync.Mutex
	blocks []*Block
	path   string
}

// OpenLedger loads an existing ledger file or creates an empty one.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{
		blocks: make([]*Block, 0),
		path:   path,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "create ledger file")
		}
		_ = f.Close()
		return l, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read ledger file")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var blk Block
		if err := dec.Decode(&blk); err != nil {
			return nil, errors.Wrap(err, "decode ledger entry")
		}
		l.blocks = append(l.blocks, &blk)
	}
	return l, nil
}

// Record appends a block for e, linked to the current tail and signed with
// priv. Index and previous hash are taken under the same lock as the append.
func (l *Ledger) Record(e Entry, priv ed25519.PrivateKey, pub ed25519.PublicKey) (*Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := ""
	if n := len(l.blocks); n > 0 {
		prev = l.blocks[n-1].Hash
	}
	b, err := NewBlock(len(l.blocks), e, prev)
	if err != nil {
		return nil, err
	}
	if err := l.appendLocked(b, priv, pub); err != nil {
		return nil, err
	}
	return b, nil
}

func (l *Ledger) appendLocked(b *Block, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	h, err := b.ComputeHash()
	if err != nil {
		return errors.Wrap(err, "recompute block hash")
	}
	b.Hash = h

	if n := len(l.blocks); n > 0 && b.PrevHash != l.blocks[n-1].Hash {
		return errors.Errorf("prevHash mismatch: expected %s, got %s", l.blocks[n-1].Hash, b.PrevHash)
	}

	if len(priv) == 0 {
		return errors.New("private key is empty, cannot sign block")
	}
	b.Signature = hex.EncodeToString(ed25519.Sign(priv, []byte(b.Hash)))
	b.PubKey = hex.EncodeToString(pub)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open ledger file")
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(b); err != nil {
		return errors.Wrap(err, "write ledger file")
	}

	l.blocks = append(l.blocks, b)
	return nil
}

// Blocks returns the blocks in order. The slice is a copy; the blocks are not.
func (l *Ledger) Blocks() []*Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Block, len(l.blocks))
	copy(out, l.blocks)
	return out
}

// Len returns the number of blocks.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.blocks)
}
