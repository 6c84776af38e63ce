package port

// Metrics is the recording side of observability used by the application layer.
type Metrics interface {
	FetchCompleted(source string, err error)
	FetchRetried(source string)
	CacheLookup(key string, hit, fresh bool)
}

type NoopMetrics struct{}

func (NoopMetrics) FetchCompleted(string, error)   {}
func (NoopMetrics) FetchRetried(string)            {}
func (NoopMetrics) CacheLookup(string, bool, bool) {}
