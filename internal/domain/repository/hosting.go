package repository

import "context"

// HostingAPI is the subset of the GitHub REST API the pipeline needs.
type HostingAPI interface {
	// CreateRepo creates a public repository; "already exists" is success.
	CreateRepo(ctx context.Context, name string) error
	// EnablePages sets the Pages build source to "workflow", creating the
	// Pages site when it does not exist yet.
	EnablePages(ctx context.Context, owner, name string) error
}
