package metrics

type QueueObserver interface {
	SetPendingDepth(n int)
	SetProcessingDepth(n int)
	IncEnqueued()
	IncCompleted()
	IncFailed()
	IncRetried()
	IncExpired()
}
