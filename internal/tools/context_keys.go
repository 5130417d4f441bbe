package tools

import "context"

// Tool execution context keys.
// Values are injected into context by the caller of Registry.Execute
// and read by individual tools during Execute().

type toolContextKey string

const (
	ctxChannel toolContextKey = "tool_channel"
	ctxUserID  toolContextKey = "tool_user_id"
)

func WithToolChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, ctxChannel, channel)
}

func ToolChannelFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxChannel).(string)
	return v
}

// WithToolUserID records the user the current turn belongs to.
func WithToolUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

func ToolUserIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}
