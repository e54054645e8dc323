package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/mkessel/trident/internal/models"
)

// DocIdentity builds the stable document identity used as the provenance key
// for chunks and extracted entities. The rules are deterministic per source
// type and resistant to renames where the source offers a stable handle:
//
//   - filesystem: absolute cleaned path (the most stable handle a plain
//     file system offers); an inode-like ID is not portable.
//   - web: scheme://host/path with query and fragment stripped, so tracking
//     parameters do not fork identities.
//   - text: content hash, since inline text has no external handle.
func DocIdentity(st models.SourceType, meta map[string]any) string {
	switch st {
	case models.SourceFilesystem:
		path, _ := meta["path"].(string)
		abs, err := filepath.Abs(filepath.Clean(path))
		if err != nil {
			abs = filepath.Clean(path)
		}
		return "fs:" + abs

	case models.SourceWeb:
		raw, _ := meta["url"].(string)
		u, err := url.Parse(raw)
		if err != nil {
			return "web:" + raw
		}
		u.RawQuery = ""
		u.Fragment = ""
		u.Host = strings.ToLower(u.Host)
		return "web:" + u.String()

	case models.SourceText:
		content, _ := meta["text"].(string)
		sum := sha256.Sum256([]byte(content))
		return "text:" + hex.EncodeToString(sum[:16])

	default:
		// Unknown source types hash whatever metadata they carry so the
		// identity is still deterministic and collision-resistant.
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%v", st, meta)))
		return string(st) + ":" + hex.EncodeToString(sum[:16])
	}
}
