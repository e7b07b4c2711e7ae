package exceptionlog

import "context"

// Repository は障害記録の永続化を抽象化します。記録は追記のみです。
type Repository interface {
	Append(ctx context.Context, entry *Entry) (*Entry, error)
}
