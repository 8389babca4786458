package index

import "github.com/eldridge/lorevault/internal/record"

// RecordIndex defines the interface for record indexing operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type RecordIndex interface {
	UpsertRecord(row RecordRow, body string, links []record.Ref) error
	DeleteRecord(category, id string) error
	GetChecksum(category, id string) (string, error)
	ListRecords(category string, limit, offset int, tag, sort string) ([]RecordRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target record.Ref) ([]record.Ref, error)
	AllChecksums() (map[record.Ref]string, error)
	Close() error
}

// Verify *DB satisfies RecordIndex at compile time.
var _ RecordIndex = (*DB)(nil)
