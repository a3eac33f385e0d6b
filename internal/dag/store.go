package dag

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	gocid "github.com/ipfs/go-cid"
	"github.com/klauspost/compress/gzip"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// hashLen is the length of a hex-encoded SHA-256 digest.
const hashLen = 64

// ObjectStore manages content-addressed, gzip-compressed blobs on disk.
// Blobs are named by hex SHA-256; on disk each lives under the base32
// encoding of its CIDv1 (raw codec, sha2-256 multihash).
type ObjectStore struct {
	dir string // path to objects/ directory
}

// NewObjectStore creates an ObjectStore at the given directory.
func NewObjectStore(dir string) (*ObjectStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, ioError("create objects dir", err)
	}
	return &ObjectStore{dir: dir}, nil
}

// HashReader computes the hex SHA-256 of everything readable from r. Input is
// consumed in fixed-size chunks, so it never needs to be fully buffered.
func HashReader(r io.Reader) (string, error) {
	mh, err := multihash.SumStream(r, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("multihash: %w", err)
	}
	decoded, err := multihash.Decode(mh)
	if err != nil {
		return "", fmt.Errorf("decode multihash: %w", err)
	}
	return hex.EncodeToString(decoded.Digest), nil
}

// HashBytes computes the hex SHA-256 of data.
func HashBytes(data []byte) string {
	h, _ := HashReader(bytes.NewReader(data))
	return h
}

// HashFile computes the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ioError("open file", err)
	}
	defer f.Close()
	return HashReader(f)
}

// ValidHash reports whether h looks like a hex SHA-256 digest.
func ValidHash(h string) bool {
	if len(h) != hashLen || strings.ToLower(h) != h {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

// ComputeCID converts a hex SHA-256 digest to a CIDv1 (raw codec).
func ComputeCID(hash string) (gocid.Cid, error) {
	if !ValidHash(hash) {
		return gocid.Undef, fmt.Errorf("%w: malformed hash %q", ErrInvalidRecord, hash)
	}
	digest, _ := hex.DecodeString(hash)
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(gocid.Raw, mh), nil
}

// CIDToFilename returns the base32lower encoding of a CID for use as a filename.
func CIDToFilename(c gocid.Cid) string {
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}

func (s *ObjectStore) path(hash string) (string, error) {
	c, err := ComputeCID(hash)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, CIDToFilename(c)), nil
}

// Put writes data to the object store, returning its hash.
// If the object already exists, this is a no-op.
func (s *ObjectStore) Put(data []byte) (string, error) {
	return s.putSeeker(bytes.NewReader(data))
}

// PutFile streams the file at path into the store.
func (s *ObjectStore) PutFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ioError("open file", err)
	}
	defer f.Close()
	return s.putSeeker(f)
}

// PutReader stores everything readable from r. The content is spooled to a
// temporary file so it can be hashed before it is compressed.
func (s *ObjectStore) PutReader(r io.Reader) (string, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return s.putSeeker(rs)
	}
	spool, err := os.CreateTemp(s.dir, ".spool-*")
	if err != nil {
		return "", ioError("create spool file", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()
	if _, err := io.Copy(spool, r); err != nil {
		return "", ioError("spool object", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return "", ioError("rewind spool", err)
	}
	return s.putSeeker(spool)
}

func (s *ObjectStore) putSeeker(rs io.ReadSeeker) (string, error) {
	hash, err := HashReader(rs)
	if err != nil {
		return "", err
	}
	path, err := s.path(hash)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return hash, nil // already exists
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", ioError("rewind object", err)
	}

	pr, pw := io.Pipe()
	go func() {
		zw := gzip.NewWriter(pw)
		_, err := io.Copy(zw, rs)
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()
	if err := SafeWriteFrom(path, pr, 0444); err != nil {
		pr.CloseWithError(err)
		return "", ioError("write object", err)
	}
	return hash, nil
}

// Open returns a streaming reader over the decompressed object.
func (s *ObjectStore) Open(hash string) (io.ReadCloser, error) {
	path, err := s.path(hash)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return nil, ioError("open object "+hash, err)
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, ioError("decompress object "+hash, err)
	}
	return &objectReader{Reader: zr, file: f}, nil
}

type objectReader struct {
	*gzip.Reader
	file *os.File
}

func (o *objectReader) Close() error {
	err := o.Reader.Close()
	if ferr := o.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// Get reads and decompresses an object.
func (s *ObjectStore) Get(hash string) ([]byte, error) {
	rc, err := s.Open(hash)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, ioError("read object "+hash, err)
	}
	return data, nil
}

// GetLines returns the object as text lines, each keeping its terminator.
func (s *ObjectStore) GetLines(hash string) ([]string, error) {
	data, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s", ErrNotText, hash)
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits text after every newline. The final line has no
// terminator if the text does not end with one.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Has checks if an object exists.
func (s *ObjectStore) Has(hash string) bool {
	path, err := s.path(hash)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// CopyTo writes the decompressed object to dest, creating parent directories.
func (s *ObjectStore) CopyTo(hash, dest string) error {
	rc, err := s.Open(hash)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return ioError("create parent dir", err)
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return ioError("create file", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return ioError("write file", err)
	}
	return ioError("close file", f.Close())
}
