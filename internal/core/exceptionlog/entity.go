package exceptionlog

import "time"

// Entry は処理されなかった障害の記録です。
type Entry struct {
	ID         int64
	Kind       string
	Message    string
	Trace      string
	OccurredAt time.Time
}
