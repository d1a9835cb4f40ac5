package download

// ProgressEvent is emitted at least once per chapter resolution so the
// presentation layer can render per-book progress.
type ProgressEvent struct {
	BookID string
	Done   int
	Total  int
	Failed int
}

// ProgressFunc receives progress events. Implementations must be fast;
// the scheduler calls them from worker goroutines.
type ProgressFunc func(ProgressEvent)
