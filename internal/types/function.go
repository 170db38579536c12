package types

// FunctionSpec describes an outbound HTTP call the agent may invoke. It is
// stored denormalized inside a ProjectData row's functions column.
type FunctionSpec struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	// BodyTemplate is a JSON document whose leaf strings may contain
	// {{placeholder}} tokens.
	BodyTemplate string         `json:"body_template,omitempty"`
	Parameters   FunctionParams `json:"parameters"`
}

type FunctionParams struct {
	Properties map[string]FunctionParamProperty `json:"properties,omitempty"`
	Required   []string                         `json:"required,omitempty"`
}

type FunctionParamProperty struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// WebhookSettings configures the per-project event webhook.
type WebhookSettings struct {
	URL     string   `json:"url,omitempty"`
	Secret  string   `json:"secret,omitempty"`
	Events  []string `json:"events,omitempty"`
	Enabled bool     `json:"enabled,omitempty"`
}

// KnowledgeFile references an uploaded knowledge-base blob.
type KnowledgeFile struct {
	Filename  string `json:"filename"`
	Path      string `json:"path,omitempty"`
	BucketKey string `json:"bucket_key,omitempty"`
	Content   string `json:"content,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}
