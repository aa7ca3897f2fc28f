package main

import (
	"github.com/vlogbase/evolve/unit"
)

// registry holds the schema fixups accumulated around the chat
// application, in the order they were originally rolled out. Later
// units may assume earlier ones already ran.
func registry() (*unit.Registry, error) {
	return unit.NewRegistry(
		unit.AddColumn("conversation", "is_pinned", "BOOLEAN NOT NULL DEFAULT FALSE"),
		unit.AddColumn("conversation", "is_archived", "BOOLEAN NOT NULL DEFAULT FALSE"),
		unit.AddColumn("user_profile", "enable_memory", "BOOLEAN NOT NULL DEFAULT TRUE"),
		unit.AddColumn("message", "model_id", "VARCHAR(120)"),
		unit.RenameColumn("message", "metadata", "message_metadata"),
	)
}
