// package models defines the data model for the playback core
package models

import "time"

// Model is a row persisted by a repository.
type Model interface {
	ID() string
	Sequence() int
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Log is an append-only store: rows are written once and never edited.
type Log[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	List(criteria map[string]any) ([]T, error)
}

// Repository is a [Log] whose rows can also be edited and deleted.
type Repository[T Model] interface {
	Log[T]
	Update(model T) error
	Delete(id string) error
}
