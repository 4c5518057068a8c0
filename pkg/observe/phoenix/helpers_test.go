package phoenix

import (
	"context"

	"github.com/Ingenimax/llmops-agent/pkg/interfaces"
)

type echoAgent struct{}

func (echoAgent) Name() string { return "echo" }

func (echoAgent) Run(_ context.Context, req interfaces.Request) (interfaces.Response, error) {
	return interfaces.Response(req), nil
}
