package session

// Topic is one selectable focus area. The ID is sent to the backend as the
// chat context; the rest is display material for the topic sidebar.
type Topic struct {
	ID          string
	Name        string
	Description string
	Examples    []string
}

const (
	// DefaultTopicID is the topic preselected for a new session.
	DefaultTopicID = "pipeline_design"

	// CustomTopicID marks the free-form topic that carries user-supplied
	// instructions instead of a curated focus.
	CustomTopicID = "custom"
)

// topics is the fixed catalog, in display order.
var topics = []Topic{
	{
		ID:          "pipeline_design",
		Name:        "Pipeline Design",
		Description: "End-to-end data pipeline architecture and orchestration",
		Examples: []string{
			"Design an incremental ingestion pipeline from Postgres to the lakehouse",
			"How should I orchestrate daily batch loads with backfill support?",
		},
	},
	{
		ID:          "schema_design",
		Name:        "Schema Design",
		Description: "Table modeling, contracts, and schema evolution",
		Examples: []string{
			"Model a slowly changing dimension for customer addresses",
			"How do I evolve a schema without breaking downstream consumers?",
		},
	},
	{
		ID:          "medallion_architecture",
		Name:        "Medallion Architecture",
		Description: "Bronze, silver, and gold layering for the lakehouse",
		Examples: []string{
			"What belongs in the silver layer for clickstream data?",
			"Review my bronze-to-gold promotion rules",
		},
	},
	{
		ID:          "dlt_development",
		Name:        "DLT Development",
		Description: "Building and tuning declarative pipeline code",
		Examples: []string{
			"Write a DLT source for a paginated REST API",
			"How do I handle late-arriving records in my pipeline?",
		},
	},
	{
		ID:          "performance_optimization",
		Name:        "Performance Optimization",
		Description: "Query tuning, partitioning, and cost control",
		Examples: []string{
			"My merge statement is slow on a 2 TB table, what should I check?",
			"Pick a partitioning strategy for event data queried by day",
		},
	},
	{
		ID:          CustomTopicID,
		Name:        "Custom",
		Description: "Free-form focus driven by your own instructions",
		Examples: []string{
			"Set your own instructions and ask anything",
		},
	},
}

// Topics returns the topic catalog in display order. The returned slice is
// a copy and can be modified freely.
func Topics() []Topic {
	out := make([]Topic, len(topics))
	copy(out, topics)
	return out
}

// TopicByID looks up a topic by its identifier.
func TopicByID(id string) (Topic, bool) {
	for _, t := range topics {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}
