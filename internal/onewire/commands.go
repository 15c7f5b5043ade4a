package onewire

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/mqtt"
)

// CommandSubscriber is implemented by MQTT clients that support
// subscriptions. The command listener is optional: a publish-only
// client runs the bridge without it.
type CommandSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// CommandMessage is the payload accepted on the command topic.
type CommandMessage struct {
	Command string `json:"command"`
}

// Commands accepted on the command topic.
const (
	// CommandRefresh forces an immediate poll cycle.
	CommandRefresh = "refresh"

	// CommandRescan re-enumerates the bus.
	CommandRescan = "rescan"
)

// ListenForCommands subscribes to the bridge's command topic so Core
// can force a poll cycle or bus rescan without going through the HTTP
// API. No-op when the MQTT client cannot subscribe.
func (b *Bridge) ListenForCommands() error {
	sub, ok := b.mqtt.(CommandSubscriber)
	if !ok {
		return nil
	}

	topic := mqtt.Topics{}.Command()
	if err := sub.Subscribe(topic, 1, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	b.logInfo("command listener active", "topic", topic)
	return nil
}

// handleCommand processes one message from the command topic.
// Handlers run per-message in the MQTT client's goroutine; cycle and
// rescan durations are bounded by the poll interval timeout.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("invalid command payload: %w", err)
	}

	b.logInfo("command received", "command", msg.Command, "topic", topic)

	switch msg.Command {
	case CommandRefresh:
		b.RunCycle(b.ctx)
		return nil
	case CommandRescan:
		return b.Rediscover(b.ctx)
	default:
		return fmt.Errorf("unknown command: %q", msg.Command)
	}
}
