package attachments

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"messaging-gateway/internal/models"
)

// ObjectStore is the durable content store: byte storage addressable by
// key, reachable later through the static media server.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) error
}

// Subtrees for direct-chat and group-chat media.
const (
	oneToOneSubtree = "mediaFiles/oneToOne"
	groupSubtree    = "mediaFiles/group"
)

// Ingestor decodes inline base-64 payloads and writes them to the
// content store under a collision-free name.
type Ingestor struct {
	store      ObjectStore
	publicBase string
}

// NewIngestor constructs an Ingestor. publicBase is the URL prefix the
// static media server serves object keys under.
func NewIngestor(store ObjectStore, publicBase string) *Ingestor {
	return &Ingestor{store: store, publicBase: strings.TrimSuffix(publicBase, "/")}
}

// Ingest strips any data-URI prefix, decodes the payload, stores it
// under the chat kind's subtree and returns the retrievable reference
// plus the stored object name. Nothing is written on decode failure.
func (i *Ingestor) Ingest(ctx context.Context, chatKind string, fileName string, fileData string, mediaType string) (string, string, error) {
	data, err := decodePayload(fileData)
	if err != nil {
		return "", "", fmt.Errorf("decode attachment: %w", err)
	}

	subtree := oneToOneSubtree
	if chatKind == models.ChatKindGroup {
		subtree = groupSubtree
	}

	// Timestamp plus a random id: two uploads of the same filename in
	// the same nanosecond still get distinct keys.
	storedName := fmt.Sprintf("%d-%s-%s", time.Now().UnixNano(), uuid.NewString()[:8], path.Base(fileName))
	key := subtree + "/" + storedName

	if err := i.store.Put(ctx, key, mediaType, data); err != nil {
		return "", "", fmt.Errorf("store attachment: %w", err)
	}
	return i.publicBase + "/" + key, storedName, nil
}

func decodePayload(fileData string) ([]byte, error) {
	if strings.HasPrefix(fileData, "data:") {
		idx := strings.Index(fileData, ";base64,")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data uri")
		}
		fileData = fileData[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(fileData)
}
