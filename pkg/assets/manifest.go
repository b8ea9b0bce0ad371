package assets

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/koharu-go/koharu/pkg/kerr"
)

// ManifestRecord is one provisioning record: which model key is cached at
// which path, what mirror it came from, and when the download completed.
type ManifestRecord struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Path        string    `json:"path"`
	MirrorURL   string    `json:"mirror_url"`
	SizeBytes   int64     `json:"size_bytes"`
	SHA256      string    `json:"sha256,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Manifest indexes completed asset downloads in an embedded badger store
// so a restart doesn't have to re-probe every mirror to learn what's
// already on disk.
type Manifest struct {
	db *badger.DB
}

// OpenManifest opens (creating if necessary) the badger index at path.
func OpenManifest(path string) (*Manifest, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, kerr.Wrap(kerr.IOFailure, "assets: open manifest store", err)
	}
	return &Manifest{db: db}, nil
}

func (m *Manifest) Close() error {
	return m.db.Close()
}

// Put records a completed download under key, assigning it a fresh
// record ID.
func (m *Manifest) Put(key string, rec ManifestRecord) error {
	rec.ID = uuid.NewString()
	rec.Key = key
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now()
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return kerr.Wrap(kerr.IOFailure, "assets: encode manifest record", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(manifestKey(key)), buf)
	})
	if err != nil {
		return kerr.Wrap(kerr.IOFailure, "assets: write manifest record", err)
	}
	return nil
}

// Get looks up the manifest record for key. Returns kerr.NotFound if
// nothing has been recorded for it yet.
func (m *Manifest) Get(key string) (ManifestRecord, error) {
	var rec ManifestRecord
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(manifestKey(key)))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return kerr.New(kerr.NotFound, "assets: no manifest record for "+key)
			}
			return kerr.Wrap(kerr.IOFailure, "assets: read manifest record", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return ManifestRecord{}, err
	}
	return rec, nil
}

func manifestKey(key string) string {
	return "asset:" + key
}
