package automation

import (
	"encoding/json"
	"log"

	paho "github.com/eclipse/paho.mqtt.golang"

	"hs100/home"
)

func handler[M any](onMessage func(topic string, message M)) paho.MessageHandler {
	return func(c paho.Client, m paho.Message) {
		if len(m.Payload()) == 0 {
			// In this case we clear the persistent message
			return
		}

		var message M
		err := json.Unmarshal(m.Payload(), &message)
		if err != nil {
			log.Printf("Invalid message on %s: %s\n", m.Topic(), err)
			return
		}

		if onMessage != nil {
			onMessage(m.Topic(), message)
		}
	}
}

func on[M any](client paho.Client, topic string, onMessage func(topic string, message M)) {
	if token := client.Subscribe(topic, 1, handler(onMessage)); token.Wait() && token.Error() != nil {
		log.Println(token.Error())
	}
}

func RegisterAutomations(client paho.Client, prefix string, h *home.Home) {
	outletAutomation(client, prefix, h)
	statusAutomation(client, prefix, h)
}

// Topics returns every topic filter RegisterAutomations subscribes to.
func Topics(prefix string) []string {
	return setTopics(prefix)
}
