package agent

import (
	"context"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// ChatInput is the input of the chat flow.
type ChatInput struct {
	Message string `json:"message"`
}

// ChatOutput is the output of the chat flow.
type ChatOutput struct {
	Answer string `json:"answer"`
}

// DefineChatFlow registers the chat flow so it shows up in the Genkit
// dev UI and can be invoked over the flow HTTP surface.
func (a *Agent) DefineChatFlow() *core.Flow[ChatInput, ChatOutput, struct{}] {
	return genkit.DefineFlow(a.g, "kbengine/chat",
		func(ctx context.Context, input ChatInput) (ChatOutput, error) {
			answer, err := a.Answer(ctx, input.Message)
			if err != nil {
				return ChatOutput{}, err
			}
			return ChatOutput{Answer: answer}, nil
		})
}
