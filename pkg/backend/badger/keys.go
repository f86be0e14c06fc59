package badger

// Database Key Namespace Design
// ==============================
//
// Data Type      Prefix   Key Format          Value Type
// ========================================================
// Entries        "e:"     e:<path>            record (CBOR)
// Content blobs  "b:"     b:<uuid>            raw or zstd bytes
//
// Entries are keyed by their full normalized path, so a prefix scan over
// "e:<dir>/" yields a whole subtree in key order. Content lives under a
// random blob id referenced from the record: renaming a directory rewrites
// the small entry records only and never copies file bodies.

const (
	prefixEntry = "e:"
	prefixBlob  = "b:"
)

func keyEntry(path string) []byte {
	return []byte(prefixEntry + path)
}

func keyBlob(id string) []byte {
	return []byte(prefixBlob + id)
}

// keySubtree is the scan prefix for everything below dir.
func keySubtree(dir string) []byte {
	if dir == "" {
		return []byte(prefixEntry)
	}
	return []byte(prefixEntry + dir + "/")
}

func pathFromEntryKey(key []byte) string {
	return string(key[len(prefixEntry):])
}
