package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"ChainSnap/internal/types"
)

const (
	// archiveVersion is the current archive format version.
	archiveVersion = 1

	// maxArchiveSize bounds the decompressed archive.
	maxArchiveSize = 1 << 30
)

// archiveFile is one snapshot file inside an archive.
type archiveFile struct {
	name string
	data []byte
}

// Manifest describes an archive that was written or restored.
type Manifest struct {
	Version   uint32    // Version is the archive format version
	CreatedAt time.Time // CreatedAt is when the archive was written
	Files     []string  // Files are the snapshot names, sorted
}

// WriteArchive bundles every present snapshot into one zstd-compressed archive.
func WriteArchive(w io.Writer, s *Store) (*Manifest, error) {
	var files []archiveFile

	for _, name := range Names {
		if !s.Exists(name) {
			continue
		}

		data, err := s.readRaw(name)
		if err != nil {
			return nil, err
		}

		files = append(files, archiveFile{name: name, data: data})
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no snapshots in %s", s.dir)
	}

	created := time.Now().UTC()
	raw := buildArchive(created, files)

	compressed, err := compress(raw)
	if err != nil {
		return nil, fmt.Errorf("compress archive:\n%w", err)
	}

	if _, err := w.Write(compressed); err != nil {
		return nil, fmt.Errorf("write archive:\n%w", err)
	}

	return manifest(archiveVersion, created, files), nil
}

// ReadArchive verifies an archive and restores its snapshots into s.
// Nothing is written unless the whole archive verifies.
func ReadArchive(r io.Reader, s *Store) (*Manifest, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read archive:\n%w", err)
	}

	raw, err := decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress archive:\n%w", err)
	}

	version, created, files, err := parseArchive(raw)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if !known(f.name) {
			return nil, fmt.Errorf("archive holds unknown snapshot %q", f.name)
		}

		if !json.Valid(f.data) {
			return nil, fmt.Errorf("archive snapshot %s is not valid JSON", f.name)
		}
	}

	for _, f := range files {
		if err := s.writeRaw(f.name, f.data); err != nil {
			return nil, err
		}
	}

	return manifest(version, created, files), nil
}

// buildArchive creates the FlatBuffers archive with checksum.
func buildArchive(created time.Time, files []archiveFile) []byte {
	sortFiles(files)

	checksum := computeChecksum(archiveVersion, files)

	builder := flatbuffers.NewBuilder(1024)

	offsets := make([]flatbuffers.UOffsetT, len(files))
	for i, f := range files {
		nameOffset := builder.CreateString(f.name)
		dataOffset := builder.CreateByteVector(f.data)

		types.ArchiveFileStart(builder)
		types.ArchiveFileAddName(builder, nameOffset)
		types.ArchiveFileAddData(builder, dataOffset)
		offsets[i] = types.ArchiveFileEnd(builder)
	}

	types.SnapshotArchiveStartFilesVector(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	filesVector := builder.EndVector(len(offsets))

	checksumOffset := builder.CreateByteVector(checksum[:])

	types.SnapshotArchiveStart(builder)
	types.SnapshotArchiveAddVersion(builder, archiveVersion)
	types.SnapshotArchiveAddCreatedAt(builder, created.UnixMilli())
	types.SnapshotArchiveAddFiles(builder, filesVector)
	types.SnapshotArchiveAddChecksum(builder, checksumOffset)
	builder.Finish(types.SnapshotArchiveEnd(builder))

	return builder.FinishedBytes()
}

// parseArchive reads and verifies an archive buffer.
func parseArchive(raw []byte) (version uint32, created time.Time, files []archiveFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed archive: %v", r)
		}
	}()

	archive := types.GetRootAsSnapshotArchive(raw, 0)

	version = archive.Version()
	if version != archiveVersion {
		return 0, time.Time{}, nil, fmt.Errorf("unsupported archive version %d", version)
	}

	var f types.ArchiveFile
	for i := range archive.FilesLength() {
		if !archive.Files(&f, i) {
			return 0, time.Time{}, nil, fmt.Errorf("read archive file %d", i)
		}

		// Copy bytes out of the FlatBuffers buffer
		files = append(files, archiveFile{
			name: string(f.Name()),
			data: bytes.Clone(f.DataBytes()),
		})
	}

	stored := archive.ChecksumBytes()
	if len(stored) != 32 {
		return 0, time.Time{}, nil, fmt.Errorf("invalid checksum length: %d", len(stored))
	}

	sortFiles(files)
	computed := computeChecksum(version, files)

	if !bytes.Equal(computed[:], stored) {
		return 0, time.Time{}, nil, fmt.Errorf("archive checksum mismatch")
	}

	return version, time.UnixMilli(archive.CreatedAt()).UTC(), files, nil
}

// computeChecksum hashes the version and every (name, data) pair in order.
func computeChecksum(version uint32, files []archiveFile) [32]byte {
	hasher := blake3.New()

	var buf [4]byte

	binary.BigEndian.PutUint32(buf[:], version)
	hasher.Write(buf[:])

	binary.BigEndian.PutUint32(buf[:], uint32(len(files)))
	hasher.Write(buf[:])

	for _, f := range files {
		binary.BigEndian.PutUint32(buf[:], uint32(len(f.name)))
		hasher.Write(buf[:])
		hasher.Write([]byte(f.name))

		binary.BigEndian.PutUint32(buf[:], uint32(len(f.data)))
		hasher.Write(buf[:])
		hasher.Write(f.data)
	}

	var checksum [32]byte
	hasher.Sum(checksum[:0])

	return checksum
}

// sortFiles orders files by name for a deterministic checksum.
func sortFiles(files []archiveFile) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].name < files[j].name
	})
}

func manifest(version uint32, created time.Time, files []archiveFile) *Manifest {
	m := &Manifest{Version: version, CreatedAt: created}
	for _, f := range files {
		m.Files = append(m.Files, f.name)
	}

	return m
}

// compress compresses archive data using zstd.
func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

// decompress decompresses zstd-compressed archive data.
func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxArchiveSize))
	if err != nil {
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}
