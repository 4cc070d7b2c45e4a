// Package gochannel provides the in-process event channel used by
// single-binary deployments and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const outputBuffer = 1000

// CreateChannel builds an in-memory publisher/subscriber pair. Both halves
// are the same GoChannel instance; messages never leave the process.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: outputBuffer,
			Persistent:          false,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
