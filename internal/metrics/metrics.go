package metrics

import (
	"sync/atomic"
)

// Metrics tracks what a run fetched and extracted.
type Metrics struct {
	ArchivesFetched uint64 `json:"archives_fetched"`
	BytesDownloaded uint64 `json:"bytes_downloaded"`
	FilesExtracted  uint64 `json:"files_extracted"`
	MembersSkipped  uint64 `json:"members_skipped"`
}

var global = &Metrics{}

// ArchiveFetched records a downloaded archive of n bytes.
func ArchiveFetched(n int64) {
	atomic.AddUint64(&global.ArchivesFetched, 1)
	atomic.AddUint64(&global.BytesDownloaded, uint64(n))
}

// FilesExtracted adds n to the count of files written to disk.
func FilesExtracted(n int) { atomic.AddUint64(&global.FilesExtracted, uint64(n)) }

// MembersSkipped adds n to the count of archive members not extracted.
func MembersSkipped(n int) { atomic.AddUint64(&global.MembersSkipped, uint64(n)) }

// Get returns a snapshot of the current metrics.
func Get() Metrics {
	return Metrics{
		ArchivesFetched: atomic.LoadUint64(&global.ArchivesFetched),
		BytesDownloaded: atomic.LoadUint64(&global.BytesDownloaded),
		FilesExtracted:  atomic.LoadUint64(&global.FilesExtracted),
		MembersSkipped:  atomic.LoadUint64(&global.MembersSkipped),
	}
}

// Reset resets all metrics to zero (useful for testing).
func Reset() {
	atomic.StoreUint64(&global.ArchivesFetched, 0)
	atomic.StoreUint64(&global.BytesDownloaded, 0)
	atomic.StoreUint64(&global.FilesExtracted, 0)
	atomic.StoreUint64(&global.MembersSkipped, 0)
}
