package executor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Ard-Skelling/autogen/internal/apperror"
)

// Stage writes a code block to workDir and returns the resulting path.
//
// The file name is a deterministic function of the block's content:
// <sha256-hex>.<ext>. Identical code always maps to the same path, so
// re-staging is idempotent; distinct content cannot collide. The write goes
// through a temp file and a rename, so a concurrently executing process
// never observes a partially written source file.
func Stage(workDir string, block CodeBlock) (string, error) {
	lang, err := Lookup(block.Language)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(block.Code))
	path := filepath.Join(workDir, fmt.Sprintf("%s.%s", hex.EncodeToString(sum[:]), lang.Ext))

	perm := os.FileMode(0o644)
	if lang.Executable {
		perm = 0o755
	}

	// Content-addressed name: if the file exists it already holds exactly
	// this code.
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		if lang.Executable && info.Mode().Perm()&0o100 == 0 {
			if err := os.Chmod(path, perm); err != nil {
				return "", apperror.Staging(path, err)
			}
		}
		return path, nil
	}

	tmp, err := os.CreateTemp(workDir, ".stage-*")
	if err != nil {
		return "", apperror.Staging(path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(block.Code); err != nil {
		tmp.Close()
		return "", apperror.Staging(path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return "", apperror.Staging(path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperror.Staging(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", apperror.Staging(path, err)
	}

	return path, nil
}
