package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPayloadKey returns the key caching a full exam definition
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// SessionAnswersKey returns the hash holding a finished session's final ledger
func (r *CacheKeyStruct) SessionAnswersKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()

type WorkerKeyStruct struct {
	PersistSubmissionsQueue string
}

// WorkerKey names the Redis lists consumed by background workers.
var WorkerKey = WorkerKeyStruct{
	PersistSubmissionsQueue: "persist_submissions_queue",
}
