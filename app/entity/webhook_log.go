package entity

import "time"

type WebhookLog struct {
	ID uint64

	PayloadJSON string
	Processed   bool
	Result      string

	ReceivedAt time.Time
}
