package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/aminofox/swift-hls-kit/pkg/errors"
)

// EncryptionMethod mirrors the HLS #EXT-X-KEY METHOD attribute.
type EncryptionMethod int

const (
	MethodNone EncryptionMethod = iota
	MethodAes128Cbc
	MethodSampleAes
	MethodSampleAesCtr
)

func (m EncryptionMethod) String() string {
	switch m {
	case MethodAes128Cbc:
		return "AES-128"
	case MethodSampleAes:
		return "SAMPLE-AES"
	case MethodSampleAesCtr:
		return "SAMPLE-AES-CTR"
	default:
		return "NONE"
	}
}

// EncryptionConfig configures a SegmentEncryptor. Key is generated
// randomly when nil. IV, when nil, is derived per segment from its
// sequence index. RotationInterval = 0 means no rotation.
type EncryptionConfig struct {
	Method           EncryptionMethod
	Key              []byte
	IV               []byte
	RotationInterval int
	KeyURI           string
	KeyFormat        string
	KeyFormatVersions string
}

// RotationEntry is one (start_index, key) pair in a rotation plan.
// KeyID is a random identifier correlating this family's key across log
// lines and directory-mode key files, replacing a hand-rolled base64 id
// with a standard UUID.
type RotationEntry struct {
	StartIndex int
	Key        []byte
	KeyID      string
}

// EncryptionPlan is the resolved, ready-to-apply form of an
// EncryptionConfig: a concrete key (generated if one wasn't supplied)
// and the rotation interval. Rotations holds only entries the caller
// adds; NewEncryptionPlan leaves it empty, and the keys of families not
// listed there are generated on first use by RotationEntryForIndex and
// cached inside the plan without being appended to Rotations.
type EncryptionPlan struct {
	Method            EncryptionMethod
	Key               []byte
	KeyID             string
	IV                []byte // nil means sequence-derived per segment
	RotationInterval  int
	KeyURI            string
	KeyFormat         string
	KeyFormatVersions string
	Rotations         []RotationEntry

	mu       sync.Mutex
	families map[int]RotationEntry
}

// NewEncryptionPlan resolves cfg into a plan, generating a random key
// when none was supplied.
func NewEncryptionPlan(cfg EncryptionConfig) (*EncryptionPlan, error) {
	if cfg.Method == MethodNone {
		return &EncryptionPlan{Method: MethodNone}, nil
	}
	if cfg.Method == MethodSampleAesCtr {
		return nil, errors.UnsupportedMethod("SAMPLE-AES-CTR is declared but not implemented")
	}

	key := cfg.Key
	if key == nil {
		var err error
		key, err = GenerateKey()
		if err != nil {
			return nil, err
		}
	}
	if len(key) != KeySize {
		return nil, errors.InvalidKeySize(len(key))
	}
	if cfg.IV != nil && len(cfg.IV) != IVSize {
		return nil, errors.InvalidIVSize(len(cfg.IV))
	}

	plan := &EncryptionPlan{
		Method:            cfg.Method,
		Key:               key,
		KeyID:             uuid.NewString(),
		IV:                cfg.IV,
		RotationInterval:  cfg.RotationInterval,
		KeyURI:            cfg.KeyURI,
		KeyFormat:         cfg.KeyFormat,
		KeyFormatVersions: cfg.KeyFormatVersions,
		families:          make(map[int]RotationEntry),
	}
	return plan, nil
}

// RotationPointForIndex reports the start_index the given 0-based
// segment index belongs to, i.e. floor(i/k)*k. With no rotation
// configured, every segment belongs to start_index 0.
func (p *EncryptionPlan) RotationPointForIndex(index int) int {
	if p.RotationInterval <= 0 {
		return 0
	}
	return (index / p.RotationInterval) * p.RotationInterval
}

// KeyForIndex returns the key in effect for segment index: the key of
// the rotation family the index belongs to, as resolved by
// RotationEntryForIndex (the same key EncryptSegment uses).
func (p *EncryptionPlan) KeyForIndex(index int) []byte {
	return p.RotationEntryForIndex(index).Key
}

// RotationEntryForIndex returns the (start_index, key, key_id) family
// segment index belongs to. Families are generated lazily on first
// access and cached, so callers that never rotate never pay for it.
// Explicit Rotations entries (pre-populated by the caller) take
// precedence over the lazily generated ones.
func (p *EncryptionPlan) RotationEntryForIndex(index int) RotationEntry {
	start := p.RotationPointForIndex(index)
	for i := len(p.Rotations) - 1; i >= 0; i-- {
		if p.Rotations[i].StartIndex <= start {
			return p.Rotations[i]
		}
	}
	if start == 0 {
		return RotationEntry{StartIndex: 0, Key: p.Key, KeyID: p.KeyID}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.families[start]; ok {
		return entry
	}
	key, err := GenerateKey()
	if err != nil {
		// Family key generation only fails if crypto/rand is broken;
		// fall back to the base key rather than panic mid-stream.
		key = p.Key
	}
	entry := RotationEntry{StartIndex: start, Key: key, KeyID: uuid.NewString()}
	p.families[start] = entry
	return entry
}

// IVForIndex derives the IV for a whole-segment-encrypted segment at
// 0-based sequence i: config.IV if explicit, else the 16-byte
// big-endian encoding of i in the low 8 bytes with the high 8 bytes
// zero.
func IVForIndex(explicit []byte, index int) []byte {
	if explicit != nil {
		return explicit
	}
	iv := make([]byte, IVSize)
	binary.BigEndian.PutUint64(iv[8:], uint64(index))
	return iv
}

// GenerateKey returns a cryptographically random 16-byte AES-128 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.CryptoFailed("failed to generate random key: " + err.Error())
	}
	return key, nil
}
