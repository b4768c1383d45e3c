package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/r3labs/sse/v2"

	"hs100/device"
	"hs100/home"
	"hs100/kasa"
)

const StatusStream = "status"

type API struct {
	home   *home.Home
	events *sse.Server
}

type outletInfo struct {
	ID   device.InternalName `json:"id"`
	Name string              `json:"name"`
	Room string              `json:"room,omitempty"`
}

type stateMessage struct {
	State kasa.State `json:"state"`
}

// New also registers a listener on h that forwards every status to the
// event stream.
func New(h *home.Home) *API {
	events := sse.New()
	events.AutoReplay = false
	events.CreateStream(StatusStream)

	a := &API{home: h, events: events}
	h.OnStatus(a.publish)

	return a
}

func (a *API) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/outlets", a.listOutlets).Methods(http.MethodGet)
	r.HandleFunc("/outlets/{name:.+}/state", a.getState).Methods(http.MethodGet)
	r.HandleFunc("/outlets/{name:.+}/state", a.setState).Methods(http.MethodPut)
	r.HandleFunc("/outlets/{name:.+}/sysinfo", a.getSysInfo).Methods(http.MethodGet)
	r.HandleFunc("/outlets/{name:.+}/emeter", a.getEmeter).Methods(http.MethodGet)
	r.Handle("/events", a.events).Methods(http.MethodGet)

	return r
}

func (a *API) Close() {
	a.events.Close()
}

func (a *API) publish(status home.Status) {
	data, err := json.Marshal(status)
	if err != nil {
		log.Println(err)
		return
	}

	a.events.Publish(StatusStream, &sse.Event{
		ID:   []byte(uuid.NewString()),
		Data: data,
	})
}

func (a *API) listOutlets(w http.ResponseWriter, r *http.Request) {
	outlets := []outletInfo{}
	for _, name := range a.home.Names() {
		if _, ok := a.home.Devices[name].(device.OnOff); !ok {
			continue
		}

		outlets = append(outlets, outletInfo{ID: name, Name: name.Name(), Room: name.Room()})
	}

	writeJSON(w, http.StatusOK, outlets)
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	outlet, err := device.GetDevice[device.OnOff](a.home.Devices, name(r))
	if err != nil {
		writeError(w, err)
		return
	}

	on, err := outlet.GetOnOff(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stateMessage{State: state(on)})
}

func (a *API) setState(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	outlet, err := device.GetDevice[device.OnOff](a.home.Devices, name(r))
	if err != nil {
		writeError(w, err)
		return
	}

	var message stateMessage
	body, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err == nil {
		err = json.Unmarshal(body, &message)
	}
	if err != nil || (message.State != kasa.StateOn && message.State != kasa.StateOff) {
		writeJSON(w, http.StatusBadRequest, errorMessage{Error: `expected {"state":"ON"} or {"state":"OFF"}`})
		return
	}

	if err := outlet.SetOnOff(r.Context(), message.State == kasa.StateOn); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, message)
}

func (a *API) getSysInfo(w http.ResponseWriter, r *http.Request) {
	outlet, err := device.GetDevice[device.Queryable](a.home.Devices, name(r))
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := outlet.GetSysInfo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (a *API) getEmeter(w http.ResponseWriter, r *http.Request) {
	outlet, err := device.GetDevice[device.Metering](a.home.Devices, name(r))
	if err != nil {
		writeError(w, err)
		return
	}

	emeter, err := outlet.GetEmeter(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, emeter)
}

func name(r *http.Request) device.InternalName {
	return device.InternalName(mux.Vars(r)["name"])
}

func state(on bool) kasa.State {
	if on {
		return kasa.StateOn
	}
	return kasa.StateOff
}

type errorMessage struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, device.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, kasa.ErrNoEmeter):
		code = http.StatusNotImplemented
	case errors.Is(err, kasa.ErrDeviceRejected):
		code = http.StatusConflict
	}

	if code == http.StatusBadGateway {
		log.Println(err)
	}

	writeJSON(w, code, errorMessage{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Println(fmt.Errorf("failed to encode response: %w", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
