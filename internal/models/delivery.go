package models

import "time"

// Channel identifies an outbound message channel.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// ValidChannel reports whether s names a known channel.
func ValidChannel(s string) bool {
	switch Channel(s) {
	case ChannelSMS, ChannelEmail, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

// SendStatus is the submission status recorded by the messaging subsystem.
type SendStatus string

const (
	SendStatusQueued SendStatus = "queued"
	SendStatusSent   SendStatus = "sent"
	SendStatusFailed SendStatus = "failed"
)

// DeliveryStatus is the carrier-reported delivery status.
type DeliveryStatus string

const (
	DeliveryStatusQueued      DeliveryStatus = "queued"
	DeliveryStatusSending     DeliveryStatus = "sending"
	DeliveryStatusSent        DeliveryStatus = "sent"
	DeliveryStatusDelivered   DeliveryStatus = "delivered"
	DeliveryStatusFailed      DeliveryStatus = "failed"
	DeliveryStatusUndelivered DeliveryStatus = "undelivered"
)

// DeliveryLogRecord is one outbound message attempt. Records are owned by
// the messaging subsystem and are read-only to the monitoring pipeline.
type DeliveryLogRecord struct {
	ID             string         `json:"id"`
	Channel        Channel        `json:"channel"`
	Status         SendStatus     `json:"status"`
	DeliveryStatus DeliveryStatus `json:"delivery_status,omitempty"`
	FailedReason   string         `json:"failed_reason,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Recipient      string         `json:"recipient,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ErrorKey returns the error string a record contributes to error pattern
// counts, preferring the carrier failure reason over the generic message.
// Empty when the record carries no error information.
func (r *DeliveryLogRecord) ErrorKey() string {
	if r.FailedReason != "" {
		return r.FailedReason
	}
	return r.ErrorMessage
}
