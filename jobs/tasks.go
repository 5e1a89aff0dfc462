package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueSecurity carries security audit events.
	QueueSecurity = "security"
)

// Queues lists every queue with its processing priority.
func Queues() map[string]int {
	return map[string]int{
		QueueSecurity: 3,
		QueueDefault:  1,
	}
}
