package types

import "github.com/google/uuid"

// OutputFormat defines the supported CLI output formats
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
)

// GlobalFlags holds flags shared by all commands
type GlobalFlags struct {
	Config       string
	LogFile      string
	OutputFormat OutputFormat
	Quiet        bool
	Verbose      bool
	Debug        bool
	DryRun       bool
}

// RemoteUser is the authenticated owner of a remote hierarchy.
type RemoteUser struct {
	ID               uuid.UUID `json:"uuid"`
	Login            string    `json:"login"`
	Name             string    `json:"name"`
	RootCollectionID uuid.UUID `json:"root_collection_uuid"`
}

// RemoteNode is a collection or item record on the remote service.
// ParentID is uuid.Nil for root collections.
type RemoteNode struct {
	ID           uuid.UUID `json:"uuid"`
	ParentID     uuid.UUID `json:"parent_uuid"`
	Name         string    `json:"name"`
	Tags         []string  `json:"tags"`
	IsCollection bool      `json:"is_collection"`
}

// ItemSpec describes one item record for a bulk create call.
type ItemSpec struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}
