//go:generate weaver generate ./pkg/wrk2 . ./pkg/services ./pkg/model ./pkg/trace ./pkg/metrics

package main

import (
	"context"
	"log"

	"socialfeed/pkg/wrk2"

	"github.com/ServiceWeaver/weaver"
)

// entry file for the socialfeed application
// components live in pkg/services, the http front end in pkg/wrk2
func main() {
	if err := weaver.Run(context.Background(), wrk2.Serve); err != nil {
		log.Fatal(err)
	}
}
