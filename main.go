//go:generate weaver generate . ./pkg/api ./pkg/services ./pkg/model ./pkg/trace ./pkg/metrics

package main

import (
	"context"
	"log"

	"socialnet/pkg/api"

	"github.com/ServiceWeaver/weaver"
)

// entry point for the social network post engine
// the source code of services is in the "pkg" folder
func main() {
	if err := weaver.Run(context.Background(), api.Serve); err != nil {
		log.Fatal(err)
	}
}
