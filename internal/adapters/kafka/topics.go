package kafka

// Topic names, prefixed with KAFKA_TOPIC_PREFIX at publish time
const (
	TopicAnalysisCompleted  = "analysis.completed"
	TopicSynthesisCompleted = "synthesis.completed"
)

// Topic joins prefix and name with a dot; an empty prefix returns name.
func Topic(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
