package automation

import (
	"encoding/json"
	"fmt"
	"log"

	paho "github.com/eclipse/paho.mqtt.golang"

	"hs100/home"
)

func statusTopic(prefix string, status home.Status) string {
	return fmt.Sprintf("%s/%s", prefix, status.Name)
}

func publishStatus(client paho.Client, prefix string, status home.Status) {
	payload, err := json.Marshal(status)
	if err != nil {
		log.Println(err)
		return
	}

	token := client.Publish(statusTopic(prefix, status), 1, true, payload)
	if token.Wait() && token.Error() != nil {
		log.Println(token.Error())
	}
}

func statusAutomation(client paho.Client, prefix string, h *home.Home) {
	h.OnStatus(func(status home.Status) {
		publishStatus(client, prefix, status)
	})
}
