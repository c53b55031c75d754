package oracle

import "context"

// Provider 模型调用入口，规划与总结共用。
type Provider interface {
	ID() string
	Call(ctx context.Context, purpose, systemPrompt, userPrompt string) (string, error)
}

type ChatProvider struct {
	id     string
	client *ChatClient
}

func NewChatProvider(id string, client *ChatClient) *ChatProvider {
	return &ChatProvider{id: id, client: client}
}

func (p *ChatProvider) ID() string { return p.id }

func (p *ChatProvider) Call(ctx context.Context, purpose, systemPrompt, userPrompt string) (string, error) {
	return p.client.CallWithMessages(ctx, purpose, systemPrompt, userPrompt)
}
