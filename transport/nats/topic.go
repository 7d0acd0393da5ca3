package nats

import (
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/codechat"
)

func AddEndpoints(group micro.Group, endpoints codechat.EndpointSet) error {
	if err := group.AddEndpoint("search", SearchHandler(endpoints.Search)); err != nil {
		return err
	}

	return group.AddEndpoint("ask", AskHandler(endpoints.Ask))
}
