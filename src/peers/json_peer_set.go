package peers

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const jsonPeerSetPath = "peers.json"

// JSONPeerSet is used to provide peer persistence on disk in the form of a JSON
// file.
type JSONPeerSet struct {
	l    sync.Mutex
	path string
}

// NewJSONPeerSet creates a new JSONPeerSet with reference to a base directory
// where the peers.json file resides.
func NewJSONPeerSet(base string) *JSONPeerSet {
	return &JSONPeerSet{
		path: filepath.Join(base, jsonPeerSetPath),
	}
}

// Path returns the location of the JSON file.
func (j *JSONPeerSet) Path() string {
	return j.path
}

// PeerSet parses the underlying JSON file and returns the corresponding
// PeerSet.
func (j *JSONPeerSet) PeerSet() (*PeerSet, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := os.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	// An empty file is an empty directory
	if len(bytes.TrimSpace(buf)) == 0 {
		return NewPeerSet(nil)
	}

	return NewPeerSetFromPeerSliceBytes(buf)
}

// Write persists a list of peers to the JSON file.
func (j *JSONPeerSet) Write(peers []*Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := json.MarshalIndent(peers, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	return os.WriteFile(j.path, buf, 0644)
}
