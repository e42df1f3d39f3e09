package upload

import (
	"github.com/google/uuid"
)

// Manifest is the metadata record of one streamed object. The coordinator
// keeps it current while blocks arrive and hands the final version to the
// caller on finalize. Persisting intermediate versions is delegated to an
// external collaborator on a timer.
type Manifest struct {
	Bucket []byte
	Key    []byte

	// UUID names the object's block keys in the paired block bucket.
	UUID uuid.UUID

	ContentLength int64
	ContentType   string
	BlockSize     uint32
	BlockCount    uint32

	BytesReceived int64
	Done          bool
}

// ManifestStore persists upload manifests. Implementations live outside
// the storage core, typically in the cluster metadata service.
type ManifestStore interface {
	SaveManifest(*Manifest) error
}
