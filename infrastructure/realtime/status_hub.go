package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin"

	"media-hub/domain/dto"
)

// StatusHub maintains per-job subscribers listening for upload status events.
// Broadcasts are version gated so a subscriber never observes a snapshot
// older than one it already received.
type StatusHub struct {
	mu   sync.RWMutex
	jobs map[string]map[chan *dto.UploadStatusResponse]struct{}
	last map[string]int64
}

func NewStatusHub() *StatusHub {
	return &StatusHub{
		jobs: make(map[string]map[chan *dto.UploadStatusResponse]struct{}),
		last: make(map[string]int64),
	}
}

// Serve registers an SSE stream for the given job.
func (h *StatusHub) Serve(c *gin.Context, jobID string, initial *dto.UploadStatusResponse) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan *dto.UploadStatusResponse, 8)
	h.addSubscriber(jobID, ch)
	defer h.removeSubscriber(jobID, ch)

	// Initial comment to keep connection open
	c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	if initial != nil {
		writeEvent(c, initial)
	}

	seen := int64(0)
	if initial != nil {
		seen = initial.Version
	}
	notify := c.Writer.CloseNotify()
	for {
		select {
		case <-notify:
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if snap.Version <= seen {
				continue
			}
			seen = snap.Version
			writeEvent(c, snap)
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, snap *dto.UploadStatusResponse) {
	data, _ := json.Marshal(snap)
	_, _ = c.Writer.Write([]byte("event: upload_status\n"))
	_, _ = c.Writer.Write([]byte("data: "))
	_, _ = c.Writer.Write(data)
	_, _ = c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *StatusHub) addSubscriber(jobID string, ch chan *dto.UploadStatusResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.jobs[jobID] == nil {
		h.jobs[jobID] = make(map[chan *dto.UploadStatusResponse]struct{})
	}
	h.jobs[jobID][ch] = struct{}{}
}

func (h *StatusHub) removeSubscriber(jobID string, ch chan *dto.UploadStatusResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.jobs[jobID]; subs != nil {
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.jobs, jobID)
			delete(h.last, jobID)
		}
	}
}

// BroadcastStatus fans the snapshot out to all subscribers of the job. A
// snapshot with a version not newer than the last broadcast is dropped.
func (h *StatusHub) BroadcastStatus(snap *dto.UploadStatusResponse) {
	if snap == nil {
		return
	}
	h.mu.Lock()
	if snap.Version <= h.last[snap.JobID] {
		h.mu.Unlock()
		return
	}
	h.last[snap.JobID] = snap.Version
	subs := h.jobs[snap.JobID]
	for ch := range subs {
		select { // non-blocking
		case ch <- snap:
		default:
		}
	}
	h.mu.Unlock()
}

// SubscriberCount reports active subscribers for a job.
func (h *StatusHub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.jobs[jobID])
}
