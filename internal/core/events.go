package core

import (
	"time"
)

// Event names carried over the notification channel. Shop dashboards treat
// these as hints to re-fetch authoritative state, not as the source of truth.
const (
	EventNewBatchPrintJob  = "newBatchPrintJob"
	EventJobStatusUpdate   = "jobStatusUpdate"
	EventBatchStatusUpdate = "batchStatusUpdate"
	EventShopStatusUpdate  = "shopStatusUpdate"
)

type NewBatchPrintJobEvent struct {
	ID         string    `json:"id"`
	Token      string    `json:"token"`
	Files      []FileRef `json:"files"`
	PrintType  PrintType `json:"printType"`
	PrintSide  PrintSide `json:"printSide"`
	Copies     int       `json:"copies"`
	Status     JobStatus `json:"status"`
	UploadTime time.Time `json:"uploadTime"`
}

type JobStatusUpdateEvent struct {
	ID     string    `json:"id"`
	Token  string    `json:"token"`
	Status JobStatus `json:"status"`
}

type BatchStatusUpdateEvent struct {
	Token  string    `json:"token"`
	Status JobStatus `json:"status"`
	Count  int       `json:"count"`
}

type ShopStatusUpdateEvent struct {
	IsAcceptingUploads bool `json:"isAcceptingUploads"`
}

// EventPublisher delivers an event to every subscriber of a shop's room.
// Publishes are fire-and-forget: failures are logged by the implementation
// and never roll back a committed state change.
type EventPublisher interface {
	PublishToShop(shopID, event string, payload interface{})
}
