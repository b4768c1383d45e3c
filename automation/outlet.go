package automation

import (
	"context"
	"fmt"
	"log"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"hs100/device"
	"hs100/home"
)

type SetMessage struct {
	State bool `json:"state"`
}

// setTopics covers both "name" and "room/name".
func setTopics(prefix string) []string {
	return []string{
		fmt.Sprintf("%s/+/set", prefix),
		fmt.Sprintf("%s/+/+/set", prefix),
	}
}

// parseSetTopic turns <prefix>/<name>/set into name.
func parseSetTopic(prefix string, topic string) (device.InternalName, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}

	name, ok := strings.CutSuffix(rest, "/set")
	if !ok || name == "" {
		return "", false
	}

	return device.InternalName(name), device.InternalName(name).Valid()
}

func setHandler(prefix string, h *home.Home) func(topic string, message SetMessage) {
	return func(topic string, message SetMessage) {
		name, ok := parseSetTopic(prefix, topic)
		if !ok {
			log.Printf("Ignoring set on %s\n", topic)
			return
		}

		outlet, err := device.GetDevice[device.OnOff](h.Devices, name)
		if err != nil {
			log.Println(err)
			return
		}

		log.Printf("Turning %s %s\n", name, onOff(message.State))
		if err := outlet.SetOnOff(context.Background(), message.State); err != nil {
			log.Printf("Failed to set %s: %s\n", name, err)
		}
	}
}

func outletAutomation(client paho.Client, prefix string, h *home.Home) {
	for _, topic := range setTopics(prefix) {
		on(client, topic, setHandler(prefix, h))
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
