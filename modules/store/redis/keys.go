package redis

// Redis key naming conventions. Every key starts with the store prefix
// (default "runstash:") so several deployments can share a database.

const defaultPrefix = "runstash:"

// checkpointKey returns the Hash holding an identity's state:
// {prefix}checkpoint:{identity}
func (s *Store) checkpointKey(identity string) string {
	return s.prefix + "checkpoint:" + identity
}

// timerKey returns the Hash of a single timer: {prefix}timer:{id}
func (s *Store) timerKey(id string) string { return s.prefix + "timer:" + id }

// projectTimersKey is the Sorted Set of project-scope timer IDs scored by
// fire time in milliseconds.
func (s *Store) projectTimersKey() string { return s.prefix + "timers:project" }

// contextTimersKey is the Sorted Set of the store's context-scope timers:
// {prefix}timers:context:{contextID}
func (s *Store) contextTimersKey() string {
	return s.prefix + "timers:context:" + s.contextID
}
