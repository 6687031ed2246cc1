package realtime

import (
	"fmt"

	pubnub "github.com/pubnub/go/v7"

	"event-ticketing/internal/config"
	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

// Notifier pushes change notifications to PubNub channels. Subscribers treat
// a message as a signal to re-fetch, so delivery is best effort.
type Notifier struct {
	pn      *pubnub.PubNub
	log     *logger.Logger
	publish func(channel string, msg interface{}) error
}

func NewNotifier(cfg config.PubNubConfig, log *logger.Logger) *Notifier {
	n := &Notifier{log: log}
	if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
		log.Warn("REALTIME", "PubNub keys not set, change notifications are logged only")
		n.publish = n.logOnly
		return n
	}

	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	n.pn = pubnub.NewPubNub(pnCfg)
	n.publish = n.publishPubNub
	log.Info("REALTIME", "PubNub notifier initialized")
	return n
}

func EventChannel(eventID string) string         { return "event-" + eventID }
func OrganizerChannel(organizerID string) string { return "organizer-" + organizerID }

func (n *Notifier) EventChanged(eventID string, change *models.ChangeNotification) {
	n.send(EventChannel(eventID), change)
}

func (n *Notifier) OrganizerChanged(organizerID string, change *models.ChangeNotification) {
	n.send(OrganizerChannel(organizerID), change)
}

func (n *Notifier) send(channel string, change *models.ChangeNotification) {
	if err := n.publish(channel, change); err != nil {
		n.log.Warn("REALTIME", fmt.Sprintf("Failed to publish %s to %s: %v", change.Type, channel, err))
	}
}

func (n *Notifier) publishPubNub(channel string, msg interface{}) error {
	_, status, err := n.pn.Publish().Channel(channel).Message(msg).Execute()
	if err != nil {
		return err
	}
	if status.Error != nil {
		return status.Error
	}
	n.log.Debug("REALTIME", fmt.Sprintf("Published to %s", channel))
	return nil
}

func (n *Notifier) logOnly(channel string, msg interface{}) error {
	if change, ok := msg.(*models.ChangeNotification); ok {
		n.log.Info("REALTIME", fmt.Sprintf("[%s] %s %s %s", channel, change.Type, change.Entity, change.EntityID))
	}
	return nil
}
