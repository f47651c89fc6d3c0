package crypto

import (
	"os"
	"path/filepath"

	"github.com/aminofox/swift-hls-kit/pkg/errors"
)

// EncryptDirectory encrypts each named segment file in dir in place
// under plan, in index order starting at startIndex. Every file is read
// and encrypted before any is written, so a missing file or an
// encryption failure leaves the directory untouched; a failure while
// writing leaves the files written before it encrypted.
// When writeKeyFile is true, the resolved key is also written to
// key.bin in dir.
func EncryptDirectory(dir string, filenames []string, plan *EncryptionPlan, startIndex int, writeKeyFile bool) error {
	enc := NewSegmentEncryptor(plan)

	type pending struct {
		path string
		data []byte
	}
	rewrites := make([]pending, 0, len(filenames))

	for i, name := range filenames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.SegmentNotFound(path)
		}
		encrypted, err := enc.EncryptSegment(data, startIndex+i)
		if err != nil {
			return err
		}
		rewrites = append(rewrites, pending{path: path, data: encrypted})
	}

	for _, r := range rewrites {
		if err := os.WriteFile(r.path, r.data, 0o644); err != nil {
			return errors.Wrap(errors.CodeSegmentNotFound, "failed to write encrypted segment", err)
		}
	}

	if writeKeyFile {
		keyPath := filepath.Join(dir, "key.bin")
		if err := os.WriteFile(keyPath, plan.Key, 0o600); err != nil {
			return errors.Wrap(errors.CodeKeyNotFound, "failed to write key.bin", err)
		}
	}

	return nil
}
