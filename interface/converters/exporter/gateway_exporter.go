package exporter

import (
	"github.com/salushome/controller/state"
)

type ExportedGateway struct {
	Identifier   string
	Host         string
	Status       string
	Devices      int
	LastPoll     NullableTime
	PollFailures int64
}

func ExportGateway(name string, gw state.Gateway) ExportedGateway {
	return ExportedGateway{
		Identifier:   name,
		Host:         gw.Host(),
		Status:       gw.Status().String(),
		Devices:      len(gw.AllDevices()),
		LastPoll:     NullableTime(gw.LastPoll()),
		PollFailures: gw.PollFailures(),
	}
}
