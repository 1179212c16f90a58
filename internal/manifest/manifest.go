package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"time"

	"example.com/canconv/internal/common"
)

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

type Manifest struct {
	CreatedAt time.Time `json:"createdAt"`
	ShaAlgo   string    `json:"shaAlgo"`
	Items     []Item    `json:"items"`
}

func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	for _, p := range paths {
		hexSum, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, err
		}
		typ := "other"
		switch {
		case hasExt(p, ".csv"):
			typ = "csv"
		case hasExt(p, ".pdf"):
			typ = "pdf"
		case hasExt(p, ".json"):
			typ = "json"
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Sha256: hexSum, Type: typ})
	}
	return m, nil
}

func hasExt(path string, exts ...string) bool {
	for _, e := range exts {
		if len(path) >= len(e) && path[len(path)-len(e):] == e {
			return true
		}
	}
	return false
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

// Digest returns a stable hash over the item checksums. Items are hashed
// in path order so the digest does not depend on build order.
func (m Manifest) Digest() string {
	items := make([]Item, len(m.Items))
	copy(items, m.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	h := sha256.New()
	for _, it := range items {
		h.Write([]byte(it.Path))
		h.Write([]byte{0})
		h.Write([]byte(it.Sha256))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
