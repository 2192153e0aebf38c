package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-relay/app/cycle"
)

func NewHandler(status CycleStatus, posted PostedCounter, info Info) *Handler {
	return &Handler{
		status:  status,
		posted:  posted,
		info:    info,
		started: time.Now(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"sources":   len(h.status.Sources()),
	}

	if last, ok := h.status.LastResult(); ok {
		health["last_cycle_at"] = last.FinishedAt.In(time.Local).Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"channel":       h.info.Channel,
		"interval":      h.info.Interval.String(),
		"max_posts":     h.info.MaxPosts,
		"active_hours":  map[string]int{"from": h.info.ActiveFromHour, "to": h.info.ActiveToHour},
		"dedup_backend": h.info.DedupBackend,
		"dry_run":       h.info.DryRun,
	}

	count, err := h.posted.Count(c.Request.Context())
	if err != nil {
		slog.Error("Failed to count posted links", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Store error"})
		return
	}
	stats["posted_links"] = count

	if last, ok := h.status.LastResult(); ok {
		stats["last_cycle"] = resultJSON(last)
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources := h.status.Sources()

	list := make([]map[string]interface{}, 0, len(sources))
	for _, src := range sources {
		list = append(list, map[string]interface{}{
			"name":            src.Name,
			"url":             src.URL,
			"allow_media":     src.AllowMedia,
			"timeout":         src.Settings.Timeout,
			"extract_content": src.Settings.ExtractContent,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": list,
		"total":   len(list),
	})
}

func resultJSON(r cycle.Result) map[string]interface{} {
	return map[string]interface{}{
		"id":             r.ID,
		"started_at":     r.StartedAt.In(time.Local).Format(time.RFC3339),
		"finished_at":    r.FinishedAt.In(time.Local).Format(time.RFC3339),
		"skipped":        r.Skipped,
		"sources":        r.Sources,
		"failed_sources": r.FailedSources,
		"fetched":        r.Fetched,
		"eligible":       r.Eligible,
		"published":      r.Published,
		"failed":         r.Failed,
	}
}
