package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Key builds the storage key for a file ingested at t.
func Key(t time.Time, name string) string {
	return t.Format("2006-01-02") + "/" + filepath.Base(name)
}

// mover is implemented by stores that can take a local file by rename
// instead of copying its bytes.
type mover interface {
	Move(ctx context.Context, key, srcPath string) error
}

// Stored is where Ingest put a file.
type Stored struct {
	Key string
	// URI is the locator to put on the Recording: a file:// URI when the
	// store holds a local copy, otherwise a KeyURI.
	URI string
}

// Ingest moves a finished capture or imported file into the store. A name
// already taken that day gets a time prefix so earlier audio is never
// overwritten. The source is left in place when Ingest fails.
func Ingest(ctx context.Context, store Store, srcPath string, now time.Time) (Stored, error) {
	if _, err := os.Stat(srcPath); err != nil {
		return Stored{}, fmt.Errorf("read %s: %w", srcPath, err)
	}

	key := Key(now, srcPath)
	if store.Exists(ctx, key) {
		key = Key(now, now.Format("150405.000")+"_"+filepath.Base(srcPath))
	}

	if m, ok := store.(mover); ok {
		if err := m.Move(ctx, key, srcPath); err != nil {
			return Stored{}, fmt.Errorf("save %s: %w", key, err)
		}
	} else {
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return Stored{}, fmt.Errorf("read %s: %w", srcPath, err)
		}
		if err := store.Save(ctx, key, data, ContentType(srcPath)); err != nil {
			return Stored{}, fmt.Errorf("save %s: %w", key, err)
		}
		if err := os.Remove(srcPath); err != nil && !os.IsNotExist(err) {
			return Stored{}, fmt.Errorf("remove source: %w", err)
		}
	}

	stored := Stored{Key: key, URI: KeyURI(key)}
	if p := store.LocalPath(key); p != "" {
		stored.URI = FileURI(p)
	}
	return stored, nil
}

// Rollback puts an ingested file back at dst. The local copy is renamed
// back; a remote-only copy is downloaded and stays in the store.
func Rollback(ctx context.Context, store Store, stored Stored, dst string) error {
	if p := store.LocalPath(stored.Key); p != "" {
		if err := os.Rename(p, dst); err == nil {
			return nil
		}
	}
	rc, err := store.Open(ctx, stored.Key)
	if err != nil {
		return fmt.Errorf("open %s: %w", stored.Key, err)
	}
	defer rc.Close()
	return writeFile(dst, rc)
}

// Fetch returns a local file holding the audio behind uri. Local locators
// resolve in place; a KeyURI is downloaded from store into a temp file that
// cleanup removes.
func Fetch(ctx context.Context, store Store, audioDir, uri string) (path string, cleanup func(), err error) {
	if p := ResolveURI(audioDir, uri); p != "" {
		return p, func() {}, nil
	}
	key, ok := KeyFromURI(uri)
	if !ok || store == nil {
		return "", nil, fmt.Errorf("%s: %w", uri, os.ErrNotExist)
	}
	if p := store.LocalPath(key); p != "" {
		return p, func() {}, nil
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", key, errors.Join(os.ErrNotExist, err))
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "voicememo-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, err
	}
	tmp.Close()
	if err := writeFile(tmp.Name(), rc); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
