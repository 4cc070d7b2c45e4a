package models

import "time"

// Workspace is the working-directory context a run executes against. Its
// lifetime is independent of any run; many runs may reference one workspace.
type Workspace struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"              validate:"required,min=1"`
	WorkingDirectory string    `json:"working_directory" validate:"required"`
	CreatedAt        time.Time `json:"created_at"`
}
