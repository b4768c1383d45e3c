package mqtt

import (
	"fmt"
	"log"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// This is the default message handler, it just logs the topic and message
var defaultHandler paho.MessageHandler = func(client paho.Client, msg paho.Message) {
	log.Printf("Unhandled message on %s: %s\n", msg.Topic(), msg.Payload())
}

func New(config Config) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(fmt.Sprintf("%s:%s", config.Host, config.Port))
	opts.SetClientID(config.ClientID)
	opts.SetDefaultPublishHandler(defaultHandler)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return client, nil
}

func Delete(m paho.Client, topics ...string) {
	if token := m.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
		log.Println(token.Error())
	}

	m.Disconnect(250)
}
