package enums

// QueueStatus tracks an upload queue entry through its lifecycle.
type QueueStatus string

const (
	QueuePending     QueueStatus = "pending"
	QueueDownloading QueueStatus = "downloading"
	QueueUploading   QueueStatus = "uploading"
	QueueCompleted   QueueStatus = "completed"
	QueueFailed      QueueStatus = "failed"
)

// ActiveQueueStatuses are the non-terminal states that hold the
// (spreadsheet, row) uniqueness guarantee.
var ActiveQueueStatuses = []QueueStatus{QueuePending, QueueDownloading, QueueUploading}

func (s QueueStatus) Valid() bool {
	switch s {
	case QueuePending, QueueDownloading, QueueUploading, QueueCompleted, QueueFailed:
		return true
	}
	return false
}

// Terminal reports whether the entry can no longer change state.
func (s QueueStatus) Terminal() bool {
	return s == QueueCompleted || s == QueueFailed
}

// CanTransitionTo enforces the forward-only state machine:
// pending -> downloading -> uploading -> completed, or failed from any active state.
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case QueueDownloading:
		return s == QueuePending
	case QueueUploading:
		return s == QueueDownloading
	case QueueCompleted:
		return s == QueueUploading
	case QueueFailed:
		return true
	}
	return false
}

// LedgerStatus is the per-attempt outcome recorded in the daily and
// history tables. Values are kept in Portuguese because the dashboard
// renders them verbatim.
type LedgerStatus string

const (
	LedgerPending LedgerStatus = "pending"
	LedgerSuccess LedgerStatus = "sucesso"
	LedgerNoVideo LedgerStatus = "sem_video"
	LedgerError   LedgerStatus = "erro"
)

func (s LedgerStatus) Valid() bool {
	switch s {
	case LedgerPending, LedgerSuccess, LedgerNoVideo, LedgerError:
		return true
	}
	return false
}
