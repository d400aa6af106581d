package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Snapshot is the instance-scoped persisted state: the identity plus the local
// lock token, written together so rehydration can validate against the shared
// store before trusting the identity.
type Snapshot struct {
	Identity  *Identity `json:"identity"`
	LockToken string    `json:"lock_token"`
}

// Prefs are profile-scoped user preferences, independent of identity.
type Prefs struct {
	Locale string  `json:"locale"`
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}

func DefaultPrefs() Prefs {
	return Prefs{Locale: "en", Volume: 0.6}
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o700)
}

func SaveSnapshot(dataDir string, snap Snapshot) error {
	if err := ensureDir(dataDir); err != nil {
		return err
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, "session.json"), body, 0o600)
}

func LoadSnapshot(dataDir string) (Snapshot, error) {
	body, err := os.ReadFile(filepath.Join(dataDir, "session.json"))
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func ClearSnapshot(dataDir string) error {
	path := filepath.Join(dataDir, "session.json")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}

func SavePrefs(dataDir string, p Prefs) error {
	if err := ensureDir(dataDir); err != nil {
		return err
	}
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, "prefs.json"), body, 0o600)
}

func LoadPrefs(dataDir string) Prefs {
	body, err := os.ReadFile(filepath.Join(dataDir, "prefs.json"))
	if err != nil {
		return DefaultPrefs()
	}
	var p Prefs
	if err := json.Unmarshal(body, &p); err != nil {
		return DefaultPrefs()
	}
	if p.Locale == "" {
		p.Locale = "en"
	}
	return p
}

// FileSharedStore keeps the profile-scoped lock token in a plain file so that
// separate client processes observe each other's logins.
type FileSharedStore struct {
	path string
}

func NewFileSharedStore(dataDir string) *FileSharedStore {
	return &FileSharedStore{path: filepath.Join(dataDir, "lock")}
}

func (f *FileSharedStore) Load() (string, error) {
	body, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (f *FileSharedStore) Save(token string) error {
	if err := ensureDir(filepath.Dir(f.path)); err != nil {
		return err
	}
	return os.WriteFile(f.path, []byte(token+"\n"), 0o600)
}

func (f *FileSharedStore) Clear() error {
	if _, err := os.Stat(f.path); err != nil {
		return nil
	}
	return os.Remove(f.path)
}

// Rehydrate restores a persisted session into the store. The lock is validated
// first: a stale or overwritten token clears the snapshot instead of reviving
// a session that was taken over while this instance was away.
func Rehydrate(store *Store, lock *Lock, dataDir string) {
	snap, err := LoadSnapshot(dataDir)
	if err != nil || !snap.Identity.Authenticated() || snap.LockToken == "" {
		return
	}
	lock.AdoptLocal(snap.LockToken)
	if err := lock.Validate(); err != nil {
		_ = ClearSnapshot(dataDir)
		return
	}
	store.SetIdentity(snap.Identity)
}
