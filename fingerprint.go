package docdedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Mode tells how the Input of a Request is interpreted.
type Mode string

const (
	// ModeText means Input is the text to translate.
	ModeText Mode = "text"
	// ModeFile means Input is the path of a document to translate.
	ModeFile Mode = "file"
)

const (
	// keyScheme is mixed into every key so a future scheme never collides
	// with keys produced by this one.
	keyScheme = "v1"

	keyDelimiter = "|"

	// keyLength is the hex length of a SHA-256 digest.
	keyLength = sha256.Size * 2
)

// Request describes one translation job as seen by the dedup cache.
// ServiceID and the language codes are opaque to the cache.
type Request struct {
	Mode       Mode
	Input      string
	ServiceID  string
	SourceLang string
	TargetLang string
}

// CacheKey is the uppercase hex fingerprint of a Request.
type CacheKey string

// String returns the key as a string.
func (k CacheKey) String() string {
	return string(k)
}

// Short returns the first 16 characters of the key, for file names and logs.
func (k CacheKey) Short() string {
	if len(k) <= 16 {
		return string(k)
	}
	return string(k[:16])
}

// ParseCacheKey validates s as a key and returns its canonical form.
func ParseCacheKey(s string) (CacheKey, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != keyLength {
		return "", fmt.Errorf("invalid cache key: want %d hex characters, got %d", keyLength, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid cache key: %w", err)
	}
	return CacheKey(s), nil
}

// DeriveKey computes the cache key for req.
//
// The input is hashed first (trimmed text, or the streamed file content),
// then the scheme version, mode, service, languages and input hash are
// joined and hashed again. ctx only interrupts hashing of a file input.
func DeriveKey(ctx context.Context, req Request) (CacheKey, error) {
	var inputHash string
	switch req.Mode {
	case ModeText:
		inputHash = HashText(req.Input)
	case ModeFile:
		h, err := HashFile(ctx, req.Input)
		if err != nil {
			return "", err
		}
		inputHash = h
	default:
		return "", fmt.Errorf("unknown request mode %q", req.Mode)
	}

	composite := strings.Join([]string{
		keyScheme,
		string(req.Mode),
		req.ServiceID,
		req.SourceLang,
		req.TargetLang,
		inputHash,
	}, keyDelimiter)

	return CacheKey(hashBytes([]byte(composite))), nil
}

// HashText computes the uppercase SHA-256 hash of the trimmed text.
func HashText(text string) string {
	return hashBytes([]byte(strings.TrimSpace(text)))
}

// HashFile computes the uppercase SHA-256 hash of the file content at path
// without loading it into memory. A missing path, or one that names a
// directory, is a *NotFoundError.
func HashFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Path: path, Cause: err}
		}
		return "", fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return "", &NotFoundError{Path: path, Message: "is a directory"}
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Path: path, Cause: err}
		}
		return "", fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, &contextReader{ctx: ctx, r: f}); err != nil {
		return "", fmt.Errorf("hashing input: %w", err)
	}

	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// SegmentKey builds the segment cache key for a translated text segment.
func SegmentKey(hash, sourceLang, targetLang, serviceID string) string {
	return hash + ":" + sourceLang + ":" + targetLang + ":" + serviceID
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// contextReader stops a long read between chunks once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
