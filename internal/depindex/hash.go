// Copyright 2026 The Focus Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package depindex

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/zeebo/blake3"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/focusvcs/focus/internal/resolve"
)

// ContentHash is the 32-byte blake3 digest of a record's canonical
// serialization: deterministic under permutation of deps and recomputable
// by any machine holding the same inputs.
type ContentHash [32]byte

func (h ContentHash) String() string { return hex.EncodeToString(h[:]) }

// RefName is the VCS ref a ContentHash is published under,
// refs/focus/<64-hex-chars>, pinning the blob against garbage collection.
func (h ContentHash) RefName() string { return "refs/focus/" + h.String() }

// ParseContentHash parses the hex form produced by ContentHash.String.
func ParseContentHash(s string) (ContentHash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return ContentHash{}, fmt.Errorf("depindex: %q is not a valid content hash", s)
	}
	var h ContentHash
	copy(h[:], raw)
	return h, nil
}

func hashBytes(data []byte) ContentHash {
	return ContentHash(blake3.Sum256(data))
}

// objectMagic is the version-tagged header prefixed to every index blob
// payload persisted in the object database. The trailing byte is the
// payload format version; bump it when the record encoding changes shape.
const objectMagic = "FIDX\x00\x01"

// encodePayload wraps a record's canonical serialization in the versioned
// object header. The ContentHash is computed over the bare canonical
// serialization, not the header, so a header-version bump alone does not
// invalidate existing hashes.
func encodePayload(r record) []byte {
	return append([]byte(objectMagic), encodeRecord(r)...)
}

func decodePayload(b []byte) (record, error) {
	if len(b) < len(objectMagic) || string(b[:len(objectMagic)]) != objectMagic {
		return record{}, fmt.Errorf("depindex: object payload has no %q header", "FIDX")
	}
	return decodeRecord(b[len(objectMagic):])
}

// keyFingerprint identifies a Key independent of its resolved value, for
// the key-fingerprint -> hash lookup index stored alongside the blobs. It
// is the blake3 digest of the Key's canonical string form, published under
// refs/focus/keys/<fingerprint>.
func keyFingerprint(key resolve.Key) ContentHash {
	return hashBytes([]byte(key.String()))
}

func keyFingerprintRefName(key resolve.Key) string {
	return "refs/focus/keys/" + keyFingerprint(key).String()
}

// record is the canonical, protowire-encoded tuple of
// (kind tag, key, value, byte-sorted dep hashes) that gets hashed.
// Encoding it is a pure function of its fields, so the same
// (key, value, dep hashes) always yields the same bytes and therefore the
// same ContentHash; decoding it is the inverse, letting a cold reader
// recover the key/value payload a hash was computed from and recompute the
// hash to check it against the name of the ref it was read from.
type record struct {
	keyKind   resolve.KeyKind
	keyString string

	valueKind resolve.ValueKind
	path      string
	includes  []string

	// depHashes are the already-computed ContentHash of every key in the
	// originating Value's Deps, sorted by their raw bytes. Storing hashes
	// rather than full Keys keeps the record's size bounded by the DAG's
	// fan-out instead of by how deep each dependency's own structure is;
	// a cold reader wanting the dependency Keys themselves re-resolves
	// them the same way the original writer did.
	depHashes []ContentHash
}

func encodeRecord(r record) []byte {
	sortedIncludes := append([]string(nil), r.includes...)
	slices.Sort(sortedIncludes)
	sortedHashes := append([]ContentHash(nil), r.depHashes...)
	slices.SortFunc(sortedHashes, func(a, b ContentHash) int {
		return cmp.Compare(a.String(), b.String())
	})

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.keyKind))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(r.keyString))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.valueKind))
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(r.path))
	for _, include := range sortedIncludes {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(include))
	}
	for _, h := range sortedHashes {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, h[:])
	}
	return b
}

func decodeRecord(b []byte) (record, error) {
	var r record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return record{}, fmt.Errorf("depindex: malformed record: bad tag")
		}
		b = b[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return record{}, fmt.Errorf("depindex: malformed record: bad key kind")
			}
			r.keyKind = resolve.KeyKind(v)
			b = b[n:]
		case 2:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return record{}, fmt.Errorf("depindex: malformed record: bad key string")
			}
			r.keyString = string(v)
			b = b[n:]
		case 3:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return record{}, fmt.Errorf("depindex: malformed record: bad value kind")
			}
			r.valueKind = resolve.ValueKind(v)
			b = b[n:]
		case 4:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return record{}, fmt.Errorf("depindex: malformed record: bad path")
			}
			r.path = string(v)
			b = b[n:]
		case 5:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return record{}, fmt.Errorf("depindex: malformed record: bad include")
			}
			r.includes = append(r.includes, string(v))
			b = b[n:]
		case 6:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 || len(v) != 32 {
				return record{}, fmt.Errorf("depindex: malformed record: bad dep hash")
			}
			var h ContentHash
			copy(h[:], v)
			r.depHashes = append(r.depHashes, h)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return record{}, fmt.Errorf("depindex: malformed record: unknown field %d", num)
			}
			b = b[n:]
		}
	}
	return r, nil
}
