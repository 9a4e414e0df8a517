// Package backup exports bird records to a gzip-compressed YAML snapshot,
// stores snapshots on a Target and restores them into a repository.
package backup

import (
	"context"
	"io"
	"time"

	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
)

const (
	// SnapshotVersion is the version written into every snapshot document.
	SnapshotVersion = 1

	// MetadataVersion is the version of the metadata sidecar format.
	MetadataVersion = 1

	// FileExtension is appended to the backup ID to form the object name.
	FileExtension = ".yaml.gz"
)

// Target represents a destination where backups are stored
type Target interface {
	// Name returns the name of the target
	Name() string
	// Store writes the snapshot read from r under key together with its metadata
	Store(ctx context.Context, key string, r io.Reader, metadata *Metadata) error
	// List returns the stored backups, newest first
	List(ctx context.Context) ([]Info, error)
	// Delete deletes a backup from storage
	Delete(ctx context.Context, id string) error
	// Validate validates the target configuration
	Validate() error
}

// Metadata describes one snapshot.
type Metadata struct {
	Version    int       `json:"version"`
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Records    int       `json:"records"`
	Size       int64     `json:"size"`     // compressed size in bytes
	Checksum   string    `json:"checksum"` // hex SHA-256 of the compressed bytes
	Source     string    `json:"source"`   // database dialect the records came from
	AppVersion string    `json:"app_version"`
	Compressed bool      `json:"compressed"`
}

// Key returns the object name the snapshot is stored under.
func (m *Metadata) Key() string {
	return m.ID + FileExtension
}

// Info is a stored backup as reported by a target.
type Info struct {
	Metadata
	Target string `json:"target"`
}

// Snapshot is the document written into a backup.
type Snapshot struct {
	Version    int          `yaml:"version"`
	CreatedAt  time.Time    `yaml:"created_at"`
	AppVersion string       `yaml:"app_version"`
	Birds      []BirdRecord `yaml:"birds"`
}

// BirdRecord is the serialized form of entities.Bird. IDs and timestamps
// are not carried over; records are matched by genus, species and
// subspecies on restore.
type BirdRecord struct {
	Genus       string `yaml:"genus"`
	Species     string `yaml:"species"`
	Subspecies  string `yaml:"subspecies,omitempty"`
	EnglishName string `yaml:"english_name"`
	Family      string `yaml:"family,omitempty"`
}

// RecordFromBird converts a stored bird into its snapshot form.
func RecordFromBird(b *entities.Bird) BirdRecord {
	return BirdRecord{
		Genus:       b.Genus,
		Species:     b.Species,
		Subspecies:  b.SubspeciesValue(),
		EnglishName: b.EnglishName,
		Family:      b.FamilyValue(),
	}
}

// Bird converts the record back into an entity ready for Upsert.
func (r *BirdRecord) Bird() *entities.Bird {
	bird := &entities.Bird{
		Genus:       r.Genus,
		Species:     r.Species,
		Subspecies:  entities.OptionalString(r.Subspecies),
		EnglishName: r.EnglishName,
		Family:      entities.OptionalString(r.Family),
	}
	bird.Normalize()
	return bird
}
