package models

import "github.com/google/uuid"

// assignID fills an unset primary key before insert so the same models
// work on databases without gen_random_uuid().
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{
		&User{},
		&Settings{},
		&Project{},
		&Changelog{},
		&Version{},
		&History{},
	}
}
