// README: Firebase Cloud Messaging push sender.
package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
)

type messageSender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type FCM struct {
	client messageSender
	log    logrus.FieldLogger
}

func NewFCM(client *messaging.Client, log logrus.FieldLogger) *FCM {
	return &FCM{client: client, log: log}
}

// Notify is a no-op for recipients without a device token.
func (f *FCM) Notify(ctx context.Context, msg Message) error {
	if msg.DeviceToken == "" {
		return nil
	}
	data := map[string]string{"type": msg.Event}
	for k, v := range msg.Data {
		data[k] = v
	}
	id, err := f.client.Send(ctx, &messaging.Message{
		Token: msg.DeviceToken,
		Data:  data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
	})
	if err != nil {
		return fmt.Errorf("notify: fcm to %s: %w", msg.Recipient, err)
	}
	f.log.WithFields(logrus.Fields{"recipient": msg.Recipient, "event": msg.Event, "message_id": id}).Debug("notify: fcm sent")
	return nil
}
