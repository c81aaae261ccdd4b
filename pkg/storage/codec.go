package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/klauspost/compress/zstd"

	"github.com/HatiCode/ticketcast/pkg/models"
)

// CodecVersion is the blob layout written by Encode.
const CodecVersion uint16 = 1

var magic = [4]byte{'T', 'C', 'K', 'M'}

// headerSize is magic (4) + version (2) + CRC-32 of the payload (4).
const headerSize = 10

const maxDecodedSize = 64 << 20

var (
	encoder = must(zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	))
	decoder = must(zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxDecodedSize),
	))
)

// must panics on a codec construction error. Options are static, so an
// error here is a programming bug.
func must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("storage codec: %v", err))
	}
	return v
}

// Encode serializes a as
//
//	"TCKM" | uint16 version | uint32 CRC-32 (IEEE) of payload | payload
//
// where payload is the zstd-compressed JSON encoding of the artifact, all
// integers big-endian. Encoding is deterministic.
func Encode(a *models.Artifact) ([]byte, error) {
	if a == nil {
		return nil, &SerializationError{Reason: "nil artifact"}
	}
	if err := a.Validate(); err != nil {
		return nil, &SerializationError{Reason: "invalid artifact", Err: err}
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return nil, &SerializationError{Reason: "marshal artifact", Err: err}
	}
	payload := encoder.EncodeAll(raw, nil)

	buf := make([]byte, headerSize, headerSize+len(payload))
	copy(buf[0:4], magic[:])
	binary.BigEndian.PutUint16(buf[4:6], CodecVersion)
	binary.BigEndian.PutUint32(buf[6:10], crc32.ChecksumIEEE(payload))
	return append(buf, payload...), nil
}

// Decode parses a blob written by Encode and validates the artifact in it.
func Decode(data []byte) (*models.Artifact, error) {
	if len(data) < headerSize {
		return nil, &SerializationError{Reason: fmt.Sprintf("blob too short: %d bytes", len(data))}
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, &SerializationError{Reason: "not a model artifact: bad magic"}
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != CodecVersion {
		return nil, &SerializationError{
			Reason: fmt.Sprintf("codec version %d, want %d", v, CodecVersion),
			Err:    ErrIncompatibleVersion,
		}
	}

	payload := data[headerSize:]
	if sum := binary.BigEndian.Uint32(data[6:10]); sum != crc32.ChecksumIEEE(payload) {
		return nil, &SerializationError{Reason: "checksum mismatch"}
	}

	raw, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, &SerializationError{Reason: "decompress payload", Err: err}
	}

	var a models.Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, &SerializationError{Reason: "unmarshal artifact", Err: err}
	}
	if a.Version != models.ArtifactVersion {
		return nil, &SerializationError{
			Reason: fmt.Sprintf("artifact version %d, want %d", a.Version, models.ArtifactVersion),
			Err:    ErrIncompatibleVersion,
		}
	}
	if err := a.Validate(); err != nil {
		return nil, &SerializationError{Reason: "invalid artifact", Err: err}
	}

	return &a, nil
}
