package dto

import (
	threaddomain "deskmail-backend/internal/thread/domain"
)

type ThreadsResponse struct {
	Threads []threaddomain.InboxSummary `json:"threads"`
	Total   int                         `json:"total"`
}

type UpdateThreadRequest struct {
	Status     *string   `json:"status"`
	AssignedTo *string   `json:"assignedTo"`
	Priority   *string   `json:"priority"`
	Tags       *[]string `json:"tags"`
	Note       *string   `json:"note"`
}

type ReplyRequest struct {
	Body string `json:"body" binding:"required"`
}

type WorkloadResponse struct {
	Workload map[string]int `json:"workload"`
}
